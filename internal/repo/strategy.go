package repo

import (
	"context"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"gorm.io/gorm"
)

type StrategyRepo interface {
	Create(ctx context.Context, strategy entity.Strategy) error
	FindById(ctx context.Context, id string) (entity.Strategy, error)
	List(ctx context.Context, limit int) ([]entity.Strategy, error)
}

type strategyRepo struct {
	db *gorm.DB
}

func NewStrategyRepo(db *gorm.DB) StrategyRepo {
	return &strategyRepo{
		db: db,
	}
}

func (r *strategyRepo) Create(ctx context.Context, strategy entity.Strategy) error {
	return r.db.WithContext(ctx).Create(&strategy).Error
}

func (r *strategyRepo) FindById(ctx context.Context, id string) (entity.Strategy, error) {
	var strategy entity.Strategy
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&strategy).Error
	if err != nil {
		return entity.Strategy{}, err
	}
	return strategy, nil
}

func (r *strategyRepo) List(ctx context.Context, limit int) ([]entity.Strategy, error) {
	var strategies []entity.Strategy
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&strategies).Error
	if err != nil {
		return nil, err
	}
	return strategies, nil
}
