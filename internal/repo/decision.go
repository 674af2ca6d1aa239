package repo

import (
	"context"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"gorm.io/gorm"
)

type DecisionRepo interface {
	Create(ctx context.Context, decision entity.Decision) error
	UpdateStatus(ctx context.Context, id string, status int, detail string) error
	UpdateFill(ctx context.Context, id string, fillPrice, fee string) error
	FindByRule(ctx context.Context, ruleId string) ([]entity.Decision, error)
}

type decisionRepo struct {
	db *gorm.DB
}

func NewDecisionRepo(db *gorm.DB) DecisionRepo {
	return &decisionRepo{
		db: db,
	}
}

func (r *decisionRepo) Create(ctx context.Context, decision entity.Decision) error {
	return r.db.WithContext(ctx).Create(&decision).Error
}

func (r *decisionRepo) UpdateStatus(ctx context.Context, id string, status int, detail string) error {
	return r.db.WithContext(ctx).Model(&entity.Decision{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "detail": detail}).Error
}

func (r *decisionRepo) UpdateFill(ctx context.Context, id string, fillPrice, fee string) error {
	return r.db.WithContext(ctx).Model(&entity.Decision{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     entity.DecisionStatusExecuted,
			"fill_price": fillPrice,
			"fee":        fee,
		}).Error
}

func (r *decisionRepo) FindByRule(ctx context.Context, ruleId string) ([]entity.Decision, error) {
	var decisions []entity.Decision
	err := r.db.WithContext(ctx).Where("rule_id = ?", ruleId).Order("decided_at, id").Find(&decisions).Error
	if err != nil {
		return nil, err
	}
	return decisions, nil
}
