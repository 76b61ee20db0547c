package tasklet

import (
	"context"
	"strconv"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// ExtractTasklet は抽出フェーズを模したシンプルな Tasklet 実装です。
// プロパティ record_count で指定された件数のレコードを「抽出」し、
// 件数を JobExecution の ExecutionContext に保存します。
type ExtractTasklet struct {
	source      string
	recordCount int
}

// NewExtractTasklet は新しい ExtractTasklet のインスタンスを作成します。
func NewExtractTasklet(cfg *config.Config, properties map[string]string) (*ExtractTasklet, error) {
	_ = cfg
	t := &ExtractTasklet{
		source:      properties["source"],
		recordCount: 5,
	}
	if raw, ok := properties["record_count"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, exception.NewBatchError("extract_tasklet", "プロパティ record_count のパースに失敗しました", err, false, false)
		}
		t.recordCount = n
	}
	return t, nil
}

// Execute は Tasklet のビジネスロジックを実行します。
func (t *ExtractTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return core.ExitStatusStopped, ctx.Err()
	default:
	}

	logger.Infof("ExtractTasklet: '%s' から %d 件のレコードを抽出したよ。", t.source, t.recordCount)

	records := make([]map[string]interface{}, 0, t.recordCount)
	for i := 0; i < t.recordCount; i++ {
		records = append(records, map[string]interface{}{"id": i, "value": i * 10})
	}

	stepExecution.ExecutionContext.Put("records", records)
	stepExecution.JobExecution.ExecutionContext.Put("extract", map[string]interface{}{
		"source":  t.source,
		"records": records,
		"count":   strconv.Itoa(len(records)),
	})

	return core.ExitStatusCompleted, nil
}

// Close は Tasklet が使用するリソースを解放します。
func (t *ExtractTasklet) Close(ctx context.Context) error {
	return nil
}

var _ core.Tasklet = (*ExtractTasklet)(nil)
