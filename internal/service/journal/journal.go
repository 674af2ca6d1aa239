// Package journal 持久化策略规则和交易流水
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/notification"
	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Service interface {
	notification.Notifier

	SaveRule(ctx context.Context, rule strategy.Rule) error
	LoadRule(ctx context.Context, id string) (strategy.Rule, error)
	// History 最近的平仓记录, 新的在前
	History(ctx context.Context, limit int) ([]portfolio.ClosedTrade, error)
	Decisions(ctx context.Context, ruleId string) ([]Record, error)
}

// Record 一条决策及其执行结果
type Record struct {
	Decision  strategy.TradeDecision
	Status    int
	Detail    string
	FillPrice decimal.Decimal
	Fee       decimal.Decimal
}

type service struct {
	strategyRepo repo.StrategyRepo
	decisionRepo repo.DecisionRepo
	tradeRepo    repo.TradeRepo
}

func NewService(strategyRepo repo.StrategyRepo, decisionRepo repo.DecisionRepo, tradeRepo repo.TradeRepo) Service {
	return &service{
		strategyRepo: strategyRepo,
		decisionRepo: decisionRepo,
		tradeRepo:    tradeRepo,
	}
}

func (s *service) SaveRule(ctx context.Context, rule strategy.Rule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	return s.strategyRepo.Create(ctx, entity.Strategy{
		Id:          rule.ID,
		Name:        rule.Name,
		Description: rule.Description,
		Source:      rule.Source,
		Symbols:     strings.Join(rule.Symbols, ","),
		Rule:        string(raw),
	})
}

func (s *service) LoadRule(ctx context.Context, id string) (strategy.Rule, error) {
	st, err := s.strategyRepo.FindById(ctx, id)
	if err != nil {
		return strategy.Rule{}, err
	}
	var rule strategy.Rule
	if err := json.Unmarshal([]byte(st.Rule), &rule); err != nil {
		return strategy.Rule{}, fmt.Errorf("decode rule %s: %w", id, err)
	}
	return rule, nil
}

func (s *service) History(ctx context.Context, limit int) ([]portfolio.ClosedTrade, error) {
	trades, err := s.tradeRepo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(trades, func(t entity.ClosedTrade, _ int) portfolio.ClosedTrade {
		return portfolio.ClosedTrade{
			RuleID:      t.RuleId,
			Symbol:      t.Symbol,
			Quantity:    parseDecimal(t.Quantity),
			EntryPrice:  parseDecimal(t.EntryPrice),
			ExitPrice:   parseDecimal(t.ExitPrice),
			OpenedAt:    t.OpenedAt,
			ClosedAt:    t.ClosedAt,
			Fees:        parseDecimal(t.Fees),
			RealizedPnL: parseDecimal(t.RealizedPnl),
		}
	}), nil
}

func (s *service) Decisions(ctx context.Context, ruleId string) ([]Record, error) {
	decisions, err := s.decisionRepo.FindByRule(ctx, ruleId)
	if err != nil {
		return nil, err
	}
	return lo.Map(decisions, func(d entity.Decision, _ int) Record {
		return Record{
			Decision: strategy.TradeDecision{
				ID:        d.Id,
				RuleID:    d.RuleId,
				Action:    strategy.Action(d.Action),
				Symbol:    d.Symbol,
				Quantity:  parseDecimal(d.Quantity),
				Price:     parseDecimal(d.Price),
				Reason:    d.Reason,
				Timestamp: d.DecidedAt,
			},
			Status:    d.Status,
			Detail:    d.Detail,
			FillPrice: parseDecimal(d.FillPrice),
			Fee:       parseDecimal(d.Fee),
		}
	}), nil
}

// Notify 把 loop 事件写入流水
func (s *service) Notify(ctx context.Context, e notification.Event) error {
	switch e.Kind {
	case notification.KindDecision:
		d := e.Decision
		if d == nil {
			return nil
		}
		return s.decisionRepo.Create(ctx, entity.Decision{
			Id:        d.ID,
			RuleId:    d.RuleID,
			Action:    string(d.Action),
			Symbol:    d.Symbol,
			Quantity:  d.Quantity.String(),
			Price:     d.Price.String(),
			Reason:    d.Reason,
			Status:    entity.DecisionStatusEmitted,
			DecidedAt: d.Timestamp,
		})
	case notification.KindFill:
		if e.Fill == nil {
			return nil
		}
		return s.decisionRepo.UpdateFill(ctx, e.Fill.DecisionID, e.Fill.Price.String(), e.Fill.Fee.String())
	case notification.KindRejected, notification.KindExecutionFailed:
		if e.Decision == nil {
			return nil
		}
		status := entity.DecisionStatusRejected
		if e.Kind == notification.KindExecutionFailed {
			status = entity.DecisionStatusFailed
		}
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}
		return s.decisionRepo.UpdateStatus(ctx, e.Decision.ID, status, detail)
	case notification.KindTradeClosed:
		t := e.Trade
		if t == nil {
			return nil
		}
		_, err := s.tradeRepo.Create(ctx, entity.ClosedTrade{
			RuleId:      lo.Ternary(t.RuleID != "", t.RuleID, e.RuleID),
			Symbol:      t.Symbol,
			Quantity:    t.Quantity.String(),
			EntryPrice:  t.EntryPrice.String(),
			ExitPrice:   t.ExitPrice.String(),
			Fees:        t.Fees.String(),
			RealizedPnl: t.RealizedPnL.String(),
			OpenedAt:    t.OpenedAt,
			ClosedAt:    t.ClosedAt,
		})
		return err
	default:
		return nil
	}
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
