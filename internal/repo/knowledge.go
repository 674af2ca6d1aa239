package repo

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type KnowledgeRepo interface {
	Create(ctx context.Context, knowledge entity.Knowledge) (int64, error)
	// Search 按关键词命中数排序返回最相关的 k 条
	Search(ctx context.Context, query string, k int) ([]entity.Knowledge, error)
}

type knowledgeRepo struct {
	db *gorm.DB
}

func NewKnowledgeRepo(db *gorm.DB) KnowledgeRepo {
	return &knowledgeRepo{
		db: db,
	}
}

func (r *knowledgeRepo) Create(ctx context.Context, knowledge entity.Knowledge) (int64, error) {
	err := r.db.WithContext(ctx).Create(&knowledge).Error
	if err != nil {
		return 0, err
	}
	return knowledge.Id, nil
}

func (r *knowledgeRepo) Search(ctx context.Context, query string, k int) ([]entity.Knowledge, error) {
	keywords := keywords(query)
	if len(keywords) == 0 || k <= 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Model(&entity.Knowledge{})
	cond := r.db.Where("LOWER(content) LIKE ?", "%"+keywords[0]+"%").Or("LOWER(title) LIKE ?", "%"+keywords[0]+"%")
	for _, kw := range keywords[1:] {
		cond = cond.Or("LOWER(content) LIKE ?", "%"+kw+"%").Or("LOWER(title) LIKE ?", "%"+kw+"%")
	}
	var candidates []entity.Knowledge
	if err := q.Where(cond).Find(&candidates).Error; err != nil {
		return nil, err
	}

	scores := lo.SliceToMap(candidates, func(item entity.Knowledge) (int64, int) {
		text := strings.ToLower(item.Title + " " + item.Content)
		return item.Id, lo.CountBy(keywords, func(kw string) bool {
			return strings.Contains(text, kw)
		})
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := scores[candidates[i].Id], scores[candidates[j].Id]
		if si != sj {
			return si > sj
		}
		return candidates[i].Id > candidates[j].Id
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "when": true, "then": true, "with": true,
	"buy": true, "sell": true, "for": true, "its": true, "goes": true,
}

// keywords 小写去重, 忽略过短的词和常见词
func keywords(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return lo.Uniq(lo.Filter(words, func(w string, _ int) bool {
		return len(w) >= 3 && !stopWords[w]
	}))
}
