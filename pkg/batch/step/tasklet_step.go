package step

import (
	"context"
	"errors"
	"time"

	core "riptide/pkg/batch/job/core"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// TaskletStep は Tasklet インターフェースをラップし、core.Step インターフェースを実装します。
// JSR352 の Tasklet ステップに相当します。
type TaskletStep struct {
	name          string
	tasklet       core.Tasklet
	stepListeners []core.StepExecutionListener
}

// TaskletStep が core.Step インターフェースを満たすことを確認します。
var _ core.Step = (*TaskletStep)(nil)

// NewTaskletStep は新しい TaskletStep のインスタンスを作成します。
func NewTaskletStep(
	name string,
	tasklet core.Tasklet,
	stepListeners []core.StepExecutionListener,
) *TaskletStep {
	return &TaskletStep{
		name:          name,
		tasklet:       tasklet,
		stepListeners: stepListeners,
	}
}

// StepName はステップ名を返します。core.Step インターフェースの実装です。
func (s *TaskletStep) StepName() string {
	return s.name
}

// ID はステップのIDを返します。core.FlowElement インターフェースの実装です。
func (s *TaskletStep) ID() string {
	return s.name
}

// notifyBeforeStep は登録されている StepExecutionListener の BeforeStep メソッドを呼び出します。
func (s *TaskletStep) notifyBeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
}

// notifyAfterStep は登録されている StepExecutionListener の AfterStep メソッドを呼び出します。
func (s *TaskletStep) notifyAfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	for _, l := range s.stepListeners {
		l.AfterStep(ctx, stepExecution)
	}
}

// Execute は Tasklet を実行し、StepExecution のライフサイクルを管理します。
// core.Step インターフェースの実装です。
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) error {
	logger.Infof("Taskletステップ '%s' を開始するよ。", s.name)

	stepExecution.MarkAsStarted()
	s.notifyBeforeStep(ctx, stepExecution)

	defer func() {
		s.notifyAfterStep(ctx, stepExecution)
		if err := s.tasklet.Close(ctx); err != nil {
			logger.Warnf("Taskletステップ '%s' のリソース解放に失敗したよ: %v", s.name, err)
		}
	}()

	exitStatus, err := s.tasklet.Execute(ctx, stepExecution)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warnf("Taskletステップ '%s' はキャンセルされたよ: %v", s.name, err)
			stepExecution.MarkAsStopped()
			return err
		}
		logger.Errorf("Taskletステップ '%s' の実行中にエラーが発生したよ: %v", s.name, err)
		stepExecution.MarkAsFailed(err)
		return exception.NewBatchError(s.name, "Tasklet の実行エラー", err, false, false)
	}

	if exitStatus == "" || exitStatus == core.ExitStatusUnknown {
		exitStatus = core.ExitStatusCompleted
	}
	stepExecution.Status = core.BatchStatusCompleted
	stepExecution.ExitStatus = exitStatus
	stepExecution.EndTime = time.Now()
	stepExecution.LastUpdated = stepExecution.EndTime

	logger.Infof("Taskletステップ '%s' が完了したよ。ExitStatus: %s", s.name, exitStatus)
	return nil
}
