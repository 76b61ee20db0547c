package listener

import (
	"context"
	"time"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	logger "riptide/pkg/batch/util/logger"
)

// LoggingStepListener はステップの開始と終了をログに出力するリスナーです。
type LoggingStepListener struct {
	config *config.LoggingConfig // 小さい設定構造体を使用
}

// NewLoggingStepListener は LoggingStepListener の新しいインスタンスを返します。
func NewLoggingStepListener(cfg *config.LoggingConfig) *LoggingStepListener {
	return &LoggingStepListener{
		config: cfg,
	}
}

// BeforeStep はステップ開始時にログを出力します。
func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("ステップ '%s' を開始するよ。", stepExecution.StepName)
}

// AfterStep はステップ終了時に処理時間と結果をログに出力します。
func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	var duration time.Duration
	if !stepExecution.EndTime.IsZero() {
		duration = stepExecution.EndTime.Sub(stepExecution.StartTime)
	}
	if len(stepExecution.Failures) > 0 {
		logger.Errorf("ステップ '%s' でエラーが発生したよ (ExitStatus: %s): %v",
			stepExecution.StepName, stepExecution.ExitStatus, stepExecution.Failures)
		return
	}
	logger.Infof("ステップ '%s' が完了したよ (ExitStatus: %s, 処理時間: %s)。",
		stepExecution.StepName, stepExecution.ExitStatus, duration.String())
}
