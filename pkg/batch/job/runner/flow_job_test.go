package runner_test

import (
	"context"
	"sync/atomic"
	"testing"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	runner "riptide/pkg/batch/job/runner"
	step "riptide/pkg/batch/step"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskletStep は TaskletFunc をステップとして登録するテスト用ヘルパーです。
func taskletStep(name string, fn step.TaskletFunc) *step.TaskletStep {
	return step.NewTaskletStep(name, fn, nil)
}

// succeedStep は常に COMPLETED で完了するステップを返し、実行回数を数えます。
func succeedStep(name string, calls *atomic.Int32) *step.TaskletStep {
	return taskletStep(name, func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		if calls != nil {
			calls.Add(1)
		}
		return core.ExitStatusCompleted, nil
	})
}

// statusStep は固定の ExitStatus を返すステップを返します。
func statusStep(name string, status core.ExitStatus) *step.TaskletStep {
	return taskletStep(name, func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		return status, nil
	})
}

func runJob(t *testing.T, graph *flow.Graph) (*core.JobExecution, error) {
	t.Helper()
	job := runner.NewFlowJob("test-id", graph.Name(), graph, nil)
	jobExecution := core.NewJobExecution(graph.Name(), core.NewJobParameters())
	err := job.Run(context.Background(), jobExecution, jobExecution.Parameters)
	return jobExecution, err
}

func TestFlowJob_LinearSuccess(t *testing.T) {
	var aCalls, bCalls atomic.Int32

	graph, err := flow.NewFlowBuilder("linear-job").
		Start(succeedStep("a", &aCalls)).
		Next(succeedStep("b", &bCalls)).
		On("COMPLETED").End().
		On("FAILED").Fail().
		Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.NoError(t, err)

	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, core.ExitStatusCompleted, jobExecution.ExitStatus)
	assert.Equal(t, int32(1), aCalls.Load())
	assert.Equal(t, int32(1), bCalls.Load())
	assert.Len(t, jobExecution.StepExecutions, 2)
}

func TestFlowJob_FailedStatusRoutesToFailTerminal(t *testing.T) {
	builder := flow.NewFlowBuilder("fail-route")
	builder.Define(statusStep("a", core.ExitStatusFailed)).
		On("COMPLETED").End().
		On("FAILED").Fail()
	builder.Start("a")
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, jobExecution.Status)
	assert.Equal(t, core.ExitStatusFailed, jobExecution.ExitStatus)
}

func TestFlowJob_StopTerminal(t *testing.T) {
	builder := flow.NewFlowBuilder("stop-route")
	builder.Define(succeedStep("a", nil)).
		On("COMPLETED").Stop()
	builder.Start("a")
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusStopped, jobExecution.Status)
	assert.Equal(t, core.ExitStatusStopped, jobExecution.ExitStatus)
}

// マッチする遷移がない ExitStatus はジョブの失敗として扱われる。
func TestFlowJob_UnresolvedTransitionFailsJob(t *testing.T) {
	builder := flow.NewFlowBuilder("unresolved")
	builder.Define(statusStep("a", core.ExitStatus("COMPLETED_WITH_SKIPS"))).
		On("COMPLETED").End().
		On("FAILED").Fail()
	builder.Start("a")
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.Error(t, err)

	var unresolved *flow.UnresolvedTransitionError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "a", unresolved.SourceName)
	assert.Equal(t, core.BatchStatusFailed, jobExecution.Status)
}

func TestFlowJob_DecisionRouting(t *testing.T) {
	var takenBranch atomic.Value

	decision := &core.DecisionFunc{
		Name: "router",
		Func: func(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) (core.ExitStatus, error) {
			return core.ExitStatus("GO_RIGHT"), nil
		},
	}

	left := taskletStep("left", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		takenBranch.Store("left")
		return core.ExitStatusCompleted, nil
	})
	right := taskletStep("right", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		takenBranch.Store("right")
		return core.ExitStatusCompleted, nil
	})

	builder := flow.NewFlowBuilder("decision-route")
	builder.Define(decision).
		On("GO_LEFT").To(left).
		On("GO_RIGHT").To(right).
		On("*").Fail()
	builder.Define(left).On("*").End()
	builder.Define(right).On("*").End()
	builder.Start(decision)
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, "right", takenBranch.Load())
}

func TestFlowJob_SubflowExecutes(t *testing.T) {
	var subCalls atomic.Int32

	subBuilder := flow.NewFlowBuilder("sub")
	subBuilder.Start(succeedStep("s1", &subCalls)).Next(succeedStep("s2", &subCalls))
	sub, err := subBuilder.Build()
	require.NoError(t, err)

	builder := flow.NewFlowBuilder("with-sub")
	builder.Define(sub).
		On("COMPLETED").End().
		On("*").Fail()
	builder.Start(sub)
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, int32(2), subCalls.Load())
}

// Split は全分岐の完了を待ち、集約結果で遷移を解決する (join セマンティクス)。
func TestFlowJob_SplitJoinsAllBranches(t *testing.T) {
	var calls atomic.Int32

	split, err := flow.NewSplit("fanout",
		succeedStep("b1", &calls),
		succeedStep("b2", &calls),
		succeedStep("b3", &calls),
	)
	require.NoError(t, err)

	builder := flow.NewFlowBuilder("split-job")
	builder.Define(split).
		On("COMPLETED").End().
		On("FAILED").Fail()
	builder.Start(split)
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFlowJob_SplitAnyFailWins(t *testing.T) {
	split, err := flow.NewSplit("fanout",
		statusStep("ok", core.ExitStatusCompleted),
		statusStep("bad", core.ExitStatusFailed),
	)
	require.NoError(t, err)

	builder := flow.NewFlowBuilder("split-fail")
	builder.Define(split).
		On("COMPLETED").End().
		On("FAILED").Fail()
	builder.Start(split)
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, jobExecution.Status)
}

// CancelSiblings が有効な場合、最初の失敗で残りの分岐がキャンセルされる。
func TestFlowJob_SplitCancelSiblings(t *testing.T) {
	started := make(chan struct{})

	// 明示的に失敗する分岐と、キャンセルされるまでブロックする分岐
	blocking := taskletStep("blocking", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	failing := taskletStep("failing", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		<-started
		return core.ExitStatusFailed, nil
	})

	split, err := flow.NewSplit("fanout", blocking, failing, flow.WithCancelSiblings())
	require.NoError(t, err)
	assert.True(t, split.CancelSiblings())

	builder := flow.NewFlowBuilder("split-cancel")
	builder.Define(split).
		On("COMPLETED").End().
		On("FAILED").Fail()
	builder.Start(split)
	graph, err := builder.Build()
	require.NoError(t, err)

	jobExecution, err := runJob(t, graph)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, jobExecution.Status)
}

// リスタート時は CurrentStateName の状態から再開し、完了済みのステップを再実行しない。
func TestFlowJob_RestartResumesFromCurrentState(t *testing.T) {
	var aCalls, bCalls atomic.Int32

	graph, err := flow.NewFlowBuilder("restart").
		Start(succeedStep("a", &aCalls)).
		Next(succeedStep("b", &bCalls)).
		On("COMPLETED").End().
		Build()
	require.NoError(t, err)

	job := runner.NewFlowJob("test-id", "restart", graph, nil)
	jobExecution := core.NewJobExecution("restart", core.NewJobParameters())
	jobExecution.Status = core.BatchStatusFailed
	jobExecution.CurrentStateName = "b"

	err = job.Run(context.Background(), jobExecution, jobExecution.Parameters)
	require.NoError(t, err)

	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
	assert.Equal(t, int32(0), aCalls.Load(), "再開前のステップは再実行されないこと")
	assert.Equal(t, int32(1), bCalls.Load())
}

// Context のキャンセルはジョブの停止として扱われる。
func TestFlowJob_ContextCancellationStopsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocking := taskletStep("blocking", func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})

	builder := flow.NewFlowBuilder("cancel-job")
	builder.Define(blocking).On("*").End()
	builder.Start(blocking)
	graph, err := builder.Build()
	require.NoError(t, err)

	job := runner.NewFlowJob("test-id", "cancel-job", graph, nil)
	jobExecution := core.NewJobExecution("cancel-job", core.NewJobParameters())

	err = job.Run(ctx, jobExecution, jobExecution.Parameters)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusStopped, jobExecution.Status)
}

// ジョブリスナーは実行の前後で1回ずつ呼ばれる。
type countingJobListener struct {
	before atomic.Int32
	after  atomic.Int32
}

func (l *countingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	l.before.Add(1)
}

func (l *countingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	l.after.Add(1)
}

func TestFlowJob_NotifiesJobListeners(t *testing.T) {
	graph, err := flow.NewFlowBuilder("listeners").
		Start(succeedStep("a", nil)).
		Build()
	require.NoError(t, err)

	listener := &countingJobListener{}
	job := runner.NewFlowJob("test-id", "listeners", graph, []core.JobExecutionListener{listener})
	jobExecution := core.NewJobExecution("listeners", core.NewJobParameters())

	err = job.Run(context.Background(), jobExecution, jobExecution.Parameters)
	require.NoError(t, err)
	assert.Equal(t, int32(1), listener.before.Load())
	assert.Equal(t, int32(1), listener.after.Load())
}
