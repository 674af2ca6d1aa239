package repo

import (
	"context"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"gorm.io/gorm"
)

type TradeRepo interface {
	Create(ctx context.Context, trade entity.ClosedTrade) (int64, error)
	List(ctx context.Context, limit int) ([]entity.ClosedTrade, error)
	FindByRule(ctx context.Context, ruleId string) ([]entity.ClosedTrade, error)
}

type tradeRepo struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) TradeRepo {
	return &tradeRepo{
		db: db,
	}
}

func (r *tradeRepo) Create(ctx context.Context, trade entity.ClosedTrade) (int64, error) {
	err := r.db.WithContext(ctx).Create(&trade).Error
	if err != nil {
		return 0, err
	}
	return trade.Id, nil
}

// List 最近的平仓记录, limit <= 0 表示全部
func (r *tradeRepo) List(ctx context.Context, limit int) ([]entity.ClosedTrade, error) {
	var trades []entity.ClosedTrade
	q := r.db.WithContext(ctx).Order("closed_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *tradeRepo) FindByRule(ctx context.Context, ruleId string) ([]entity.ClosedTrade, error) {
	var trades []entity.ClosedTrade
	err := r.db.WithContext(ctx).Where("rule_id = ?", ruleId).Order("closed_at").Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
