package engine

import (
	"context"
	"sync"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Next(ctx context.Context, symbol string) (market.Observation, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.Observation), args.Error(1)
}

// flakyExecutor 前 failures 次执行失败, 之后交给 next
type flakyExecutor struct {
	mu       sync.Mutex
	failures int
	calls    int
	next     exchange.Executor
}

func (f *flakyExecutor) Execute(ctx context.Context, d strategy.TradeDecision) (exchange.Fill, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return exchange.Fill{}, exchange.NewExecutionError(d, context.DeadlineExceeded)
	}
	return f.next.Execute(ctx, d)
}
