package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Task interface {
	Run(ctx context.Context) error
	Name() string
}

// RunAll 每个任务一个 goroutine, 全部结束后返回合并的错误
func RunAll(ctx context.Context, tasks ...Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Debug("task started", "task", task.Name())
			if err := task.Run(ctx); err != nil {
				slog.Error("task failed", "task", task.Name(), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task.Name(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
