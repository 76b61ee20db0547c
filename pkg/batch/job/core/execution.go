package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobExecution はジョブの単一の実行インスタンスを表す構造体です。
type JobExecution struct {
	ID               string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStateName string
	CancelFunc       context.CancelFunc

	mu sync.Mutex // StepExecutions と Failures の保護 (Split 実行中は複数ゴルーチンから追記される)
}

// NewJobExecution は新しい JobExecution のインスタンスを作成します。
func NewJobExecution(jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.New().String(),
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		CreateTime:       now,
		LastUpdated:      now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// MarkAsStarted は JobExecution を実行中としてマークします。
func (je *JobExecution) MarkAsStarted() {
	je.Status = BatchStatusStarted
	je.StartTime = time.Now()
	je.LastUpdated = time.Now()
}

// MarkAsCompleted は JobExecution を正常終了としてマークします。
func (je *JobExecution) MarkAsCompleted() {
	je.Status = BatchStatusCompleted
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = time.Now()
	je.LastUpdated = time.Now()
}

// MarkAsFailed は JobExecution を異常終了としてマークし、発生したエラーを記録します。
func (je *JobExecution) MarkAsFailed(err error) {
	je.Status = BatchStatusFailed
	je.ExitStatus = ExitStatusFailed
	je.EndTime = time.Now()
	je.LastUpdated = time.Now()
	if err != nil {
		je.AddFailureException(err)
	}
}

// MarkAsStopped は JobExecution を停止としてマークします。
func (je *JobExecution) MarkAsStopped() {
	je.Status = BatchStatusStopped
	je.ExitStatus = ExitStatusStopped
	je.EndTime = time.Now()
	je.LastUpdated = time.Now()
}

// AddFailureException は JobExecution にエラーを追加します。
func (je *JobExecution) AddFailureException(err error) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Failures = append(je.Failures, err)
}

// AddStepExecution は JobExecution に StepExecution を追加します。
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.StepExecutions = append(je.StepExecutions, se)
}

// FindStepExecution は指定されたステップ名の StepExecution のうち、
// 指定されたステータスに一致する最初のものを返します。リスタート時の再利用に使用します。
func (je *JobExecution) FindStepExecution(stepName string, status JobStatus) *StepExecution {
	je.mu.Lock()
	defer je.mu.Unlock()
	for _, se := range je.StepExecutions {
		if se.StepName == stepName && se.Status == status {
			return se
		}
	}
	return nil
}

// StepExecution はステップの単一の実行インスタンスを表す構造体です。
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution // 所属するジョブ実行への参照
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}

// NewStepExecution は新しい StepExecution のインスタンスを作成します。
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	return &StepExecution{
		ID:               id,
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
}

// MarkAsStarted は StepExecution を実行中としてマークします。
func (se *StepExecution) MarkAsStarted() {
	se.Status = BatchStatusStarted
	se.StartTime = time.Now()
	se.LastUpdated = time.Now()
}

// MarkAsCompleted は StepExecution を正常終了としてマークします。
func (se *StepExecution) MarkAsCompleted() {
	se.Status = BatchStatusCompleted
	se.ExitStatus = ExitStatusCompleted
	se.EndTime = time.Now()
	se.LastUpdated = time.Now()
}

// MarkAsFailed は StepExecution を異常終了としてマークし、発生したエラーを記録します。
func (se *StepExecution) MarkAsFailed(err error) {
	se.Status = BatchStatusFailed
	se.ExitStatus = ExitStatusFailed
	se.EndTime = time.Now()
	se.LastUpdated = time.Now()
	if err != nil {
		se.Failures = append(se.Failures, err)
	}
}

// MarkAsStopped は StepExecution を停止としてマークします。
func (se *StepExecution) MarkAsStopped() {
	se.Status = BatchStatusStopped
	se.ExitStatus = ExitStatusStopped
	se.EndTime = time.Now()
	se.LastUpdated = time.Now()
}
