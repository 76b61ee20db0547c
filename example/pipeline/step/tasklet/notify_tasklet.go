package tasklet

import (
	"context"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	logger "riptide/pkg/batch/util/logger"
)

// NotifyTasklet は完了通知と後始末のフェーズを模した Tasklet です。
// 通知チャネルはプロパティ channel で指定します。
type NotifyTasklet struct {
	channel string
}

// NewNotifyTasklet は新しい NotifyTasklet のインスタンスを作成します。
func NewNotifyTasklet(cfg *config.Config, properties map[string]string) (*NotifyTasklet, error) {
	_ = cfg
	channel := properties["channel"]
	if channel == "" {
		channel = "log"
	}
	return &NotifyTasklet{channel: channel}, nil
}

// Execute は Tasklet のビジネスロジックを実行します。
func (t *NotifyTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return core.ExitStatusStopped, ctx.Err()
	default:
	}
	logger.Infof("NotifyTasklet: チャネル '%s' にジョブ '%s' の完了を通知したよ。",
		t.channel, stepExecution.JobExecution.JobName)
	return core.ExitStatusCompleted, nil
}

// Close は Tasklet が使用するリソースを解放します。
func (t *NotifyTasklet) Close(ctx context.Context) error {
	return nil
}

var _ core.Tasklet = (*NotifyTasklet)(nil)
