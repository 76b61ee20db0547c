package listener

import (
	"context"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	logger "riptide/pkg/batch/util/logger"
)

// LoggingJobListener はジョブの開始と終了をログに出力するリスナーです。
type LoggingJobListener struct {
	config *config.LoggingConfig // 小さい設定構造体を使用
}

// NewLoggingJobListener は LoggingJobListener の新しいインスタンスを返します。
func NewLoggingJobListener(cfg *config.LoggingConfig) *LoggingJobListener {
	return &LoggingJobListener{
		config: cfg,
	}
}

// BeforeJob はジョブ開始時にログを出力します。
func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	logger.Infof("Job '%s' の実行を開始するよ (Execution ID: %s)。", jobExecution.JobName, jobExecution.ID)
}

// AfterJob はジョブ終了時に最終ステータスをログに出力します。
func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	if len(jobExecution.Failures) > 0 {
		logger.Errorf("Job '%s' がエラーで完了したよ (Status: %s, ExitStatus: %s): %v",
			jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, jobExecution.Failures)
		return
	}
	logger.Infof("Job '%s' の実行が完了したよ (Status: %s, ExitStatus: %s)。",
		jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
}
