package joblauncher

import (
	"context"
	"fmt"
	"sync"

	core "riptide/pkg/batch/job/core"
	logger "riptide/pkg/batch/util/logger"
)

// JobLauncher は Job を JobParameters とともに起動するためのインターフェースです。
type JobLauncher interface {
	Launch(ctx context.Context, job core.Job, params core.JobParameters) (*core.JobExecution, error)
	Stop(executionID string) error
}

// SimpleJobLauncher は JobLauncher インターフェースのシンプルな実装です。
// JobExecution のライフサイクル管理と、実行中ジョブの停止要求の受け付けを行います。
type SimpleJobLauncher struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc // Execution ID -> キャンセル関数
}

// NewSimpleJobLauncher は新しい SimpleJobLauncher のインスタンスを作成します。
func NewSimpleJobLauncher() *SimpleJobLauncher {
	return &SimpleJobLauncher{
		running: make(map[string]context.CancelFunc),
	}
}

// Launch は指定された Job を JobParameters とともに起動し、JobExecution を管理します。
// ジョブは呼び出し元のゴルーチンで同期実行され、完了後の JobExecution を返します。
func (l *SimpleJobLauncher) Launch(ctx context.Context, job core.Job, params core.JobParameters) (*core.JobExecution, error) {
	jobName := job.JobName()

	if err := job.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s' のパラメータ検証に失敗したよ: %v", jobName, err)
		return nil, fmt.Errorf("起動処理エラー: ジョブパラメータの検証に失敗しました: %w", err)
	}

	jobExecution := core.NewJobExecution(jobName, params)

	// 停止要求を受け付けられるようにキャンセル可能な Context で実行する
	runCtx, cancel := context.WithCancel(ctx)
	jobExecution.CancelFunc = cancel

	l.mu.Lock()
	l.running[jobExecution.ID] = cancel
	l.mu.Unlock()

	defer func() {
		cancel()
		l.mu.Lock()
		delete(l.running, jobExecution.ID)
		l.mu.Unlock()
	}()

	logger.Infof("Job '%s' (Execution ID: %s) を実行するよ。", jobName, jobExecution.ID)

	// Run メソッド内で JobExecution の最終状態が設定されることを期待する
	runErr := job.Run(runCtx, jobExecution, params)
	if runErr != nil {
		logger.Errorf("Job '%s' (Execution ID: %s) がエラーで終了したよ: %v", jobName, jobExecution.ID, runErr)
	} else {
		logger.Infof("Job '%s' (Execution ID: %s) が終了したよ (Status: %s)。", jobName, jobExecution.ID, jobExecution.Status)
	}
	return jobExecution, runErr
}

// Stop は実行中のジョブに停止を要求します。
// 該当する実行が見つからない場合はエラーを返します。
func (l *SimpleJobLauncher) Stop(executionID string) error {
	l.mu.Lock()
	cancel, ok := l.running[executionID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("実行中の JobExecution '%s' が見つかりません", executionID)
	}
	logger.Infof("JobExecution '%s' に停止を要求したよ。", executionID)
	cancel()
	return nil
}
