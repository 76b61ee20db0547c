package step

import (
	"context"

	core "riptide/pkg/batch/job/core"
)

// TaskletFunc は関数を core.Tasklet として扱うためのアダプタです。
type TaskletFunc func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error)

// Execute は core.Tasklet インターフェースの実装です。
func (f TaskletFunc) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	return f(ctx, stepExecution)
}

// Close は core.Tasklet インターフェースの実装です。関数型には解放するリソースがありません。
func (f TaskletFunc) Close(ctx context.Context) error {
	return nil
}
