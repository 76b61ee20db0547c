package tasklet

import (
	"context"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// TransformTasklet は抽出されたレコードを変換するフェーズを模した Tasklet です。
// ExecutionContext の extract.records を読み取り、変換済みレコードを保存します。
type TransformTasklet struct{}

// NewTransformTasklet は新しい TransformTasklet のインスタンスを作成します。
func NewTransformTasklet(cfg *config.Config, properties map[string]string) (*TransformTasklet, error) {
	_ = cfg
	_ = properties
	return &TransformTasklet{}, nil
}

// Execute は Tasklet のビジネスロジックを実行します。
func (t *TransformTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return core.ExitStatusStopped, ctx.Err()
	default:
	}

	raw, ok := stepExecution.JobExecution.ExecutionContext.GetNested("extract.records")
	if !ok {
		return core.ExitStatusFailed, exception.NewBatchErrorf("transform_tasklet", "ExecutionContext に抽出結果が見つかりません")
	}
	records, ok := raw.([]map[string]interface{})
	if !ok {
		return core.ExitStatusFailed, exception.NewBatchErrorf("transform_tasklet", "抽出結果の型が不正です")
	}

	transformed := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		value, _ := r["value"].(int)
		transformed = append(transformed, map[string]interface{}{
			"id":    r["id"],
			"value": value * 2,
		})
	}

	stepExecution.JobExecution.ExecutionContext.Put("transform", map[string]interface{}{
		"records": transformed,
	})
	logger.Infof("TransformTasklet: %d 件のレコードを変換したよ。", len(transformed))
	return core.ExitStatusCompleted, nil
}

// Close は Tasklet が使用するリソースを解放します。
func (t *TransformTasklet) Close(ctx context.Context) error {
	return nil
}

var _ core.Tasklet = (*TransformTasklet)(nil)
