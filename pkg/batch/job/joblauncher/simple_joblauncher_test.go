package joblauncher_test

import (
	"context"
	"testing"
	"time"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	joblauncher "riptide/pkg/batch/job/joblauncher"
	runner "riptide/pkg/batch/job/runner"
	step "riptide/pkg/batch/step"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildJob は単一タスクレットのジョブを組み立てます。
func buildJob(t *testing.T, name string, fn step.TaskletFunc) core.Job {
	t.Helper()

	builder := flow.NewFlowBuilder(name)
	builder.Start(step.NewTaskletStep("work", fn, nil))
	graph, err := builder.Build()
	require.NoError(t, err)
	return runner.NewFlowJob("test-id", name, graph, nil)
}

func TestSimpleJobLauncher_Launch(t *testing.T) {
	job := buildJob(t, "launch-job", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		return core.ExitStatusCompleted, nil
	})

	launcher := joblauncher.NewSimpleJobLauncher()
	jobExecution, err := launcher.Launch(context.Background(), job, core.NewJobParameters())
	require.NoError(t, err)

	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, "launch-job", jobExecution.JobName)
	// 完了した実行は停止対象から外れている
	assert.Error(t, launcher.Stop(jobExecution.ID))
}

func TestSimpleJobLauncher_StopCancelsRunningJob(t *testing.T) {
	started := make(chan string, 1)

	job := buildJob(t, "stoppable-job", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		started <- stepExecution.JobExecution.ID
		<-ctx.Done()
		return "", ctx.Err()
	})

	launcher := joblauncher.NewSimpleJobLauncher()

	type result struct {
		jobExecution *core.JobExecution
		err          error
	}
	done := make(chan result, 1)
	go func() {
		jobExecution, err := launcher.Launch(context.Background(), job, core.NewJobParameters())
		done <- result{jobExecution, err}
	}()

	var executionID string
	select {
	case executionID = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("ジョブが開始されなかった")
	}

	require.NoError(t, launcher.Stop(executionID))

	select {
	case r := <-done:
		require.Error(t, r.err)
		assert.Equal(t, core.BatchStatusStopped, r.jobExecution.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("ジョブが停止しなかった")
	}
}

func TestSimpleJobLauncher_StopUnknownExecution(t *testing.T) {
	launcher := joblauncher.NewSimpleJobLauncher()
	assert.Error(t, launcher.Stop("no-such-execution"))
}
