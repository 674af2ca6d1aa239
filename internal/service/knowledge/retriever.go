// Package knowledge 策略知识片段的录入与检索
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/samber/lo"
)

var ErrEmptyContent = errors.New("knowledge content is empty")

var _ strategy.Retriever = (*Service)(nil)

type Service struct {
	repo repo.KnowledgeRepo
}

func NewService(repo repo.KnowledgeRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Add(ctx context.Context, title, content string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, ErrEmptyContent
	}
	return s.repo.Create(ctx, entity.Knowledge{
		Title:   strings.TrimSpace(title),
		Content: content,
	})
}

func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	items, err := s.repo.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	return lo.Map(items, func(item entity.Knowledge, _ int) string {
		if item.Title == "" {
			return item.Content
		}
		return item.Title + ": " + item.Content
	}), nil
}
