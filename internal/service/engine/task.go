package engine

import (
	"context"
	"fmt"

	"github.com/KNICEX/strategy-agent/internal/schedule"
)

var _ schedule.Task = (*WatchTask)(nil)

// WatchTask 把 Loop 包装成可调度的任务, 数据源失败作为任务错误返回
type WatchTask struct {
	loop   *Loop
	result chan Result
}

func NewWatchTask(loop *Loop) *WatchTask {
	return &WatchTask{
		loop:   loop,
		result: make(chan Result, 1),
	}
}

func (t *WatchTask) Run(ctx context.Context) error {
	res := t.loop.Run(ctx)
	t.result <- res
	if res.Outcome == OutcomeSourceFailure {
		return fmt.Errorf("watch loop %s: %w", res.RuleID, res.Err)
	}
	return nil
}

func (t *WatchTask) Name() string {
	return "watch " + t.loop.Name()
}
