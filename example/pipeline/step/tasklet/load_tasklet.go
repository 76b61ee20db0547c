package tasklet

import (
	"context"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// LoadTasklet は変換済みレコードの書き込みフェーズを模した Tasklet です。
// プロパティ fail を "true" に設定すると意図的に失敗し、FAILED ルートの
// 遷移を確認できます。
type LoadTasklet struct {
	target string
	fail   bool
}

// NewLoadTasklet は新しい LoadTasklet のインスタンスを作成します。
func NewLoadTasklet(cfg *config.Config, properties map[string]string) (*LoadTasklet, error) {
	_ = cfg
	return &LoadTasklet{
		target: properties["target"],
		fail:   properties["fail"] == "true",
	}, nil
}

// Execute は Tasklet のビジネスロジックを実行します。
func (t *LoadTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return core.ExitStatusStopped, ctx.Err()
	default:
	}

	if t.fail {
		logger.Errorf("LoadTasklet: '%s' への書き込みが意図的に失敗したよ。", t.target)
		return core.ExitStatusFailed, exception.NewBatchErrorf("load_tasklet", "'%s' への書き込みに失敗しました", t.target)
	}

	raw, ok := stepExecution.JobExecution.ExecutionContext.GetNested("transform.records")
	if !ok {
		return core.ExitStatusFailed, exception.NewBatchErrorf("load_tasklet", "ExecutionContext に変換結果が見つかりません")
	}
	records, ok := raw.([]map[string]interface{})
	if !ok {
		return core.ExitStatusFailed, exception.NewBatchErrorf("load_tasklet", "変換結果の型が不正です")
	}

	logger.Infof("LoadTasklet: %d 件のレコードを '%s' に書き込んだよ。", len(records), t.target)
	return core.ExitStatusCompleted, nil
}

// Close は Tasklet が使用するリソースを解放します。
func (t *LoadTasklet) Close(ctx context.Context) error {
	return nil
}

var _ core.Tasklet = (*LoadTasklet)(nil)
