package flow_test

import (
	"context"
	"errors"
	"testing"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopStep はテスト用の何もしないステップです。
type noopStep struct {
	name string
}

func (s *noopStep) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) error {
	stepExecution.MarkAsStarted()
	stepExecution.MarkAsCompleted()
	return nil
}

func (s *noopStep) StepName() string { return s.name }
func (s *noopStep) ID() string       { return s.name }

func newNoopStep(name string) *noopStep {
	return &noopStep{name: name}
}

// constDecision はテスト用の常に固定ステータスを返すデシジョンです。
func constDecision(name string, status core.ExitStatus) core.Decision {
	return &core.DecisionFunc{
		Name: name,
		Func: func(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) (core.ExitStatus, error) {
			return status, nil
		},
	}
}

func TestFlowBuilder_ChainedStyle(t *testing.T) {
	graph, err := flow.NewFlowBuilder("chained").
		Start(newNoopStep("a")).
		Next(newNoopStep("b")).
		On("FAILED").Fail().
		Build()
	require.NoError(t, err)

	// a --COMPLETED--> b、b --FAILED--> fail
	target, err := graph.Resolve("a", core.ExitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "b", target)

	target, err = graph.Resolve("b", core.ExitStatusFailed)
	require.NoError(t, err)
	failState, ok := graph.State(target)
	require.True(t, ok)
	assert.Equal(t, flow.StateKindFail, failState.Kind())
}

func TestFlowBuilder_DeclarativeStyle(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")

	builder := flow.NewFlowBuilder("declarative")
	builder.Define(a).
		On("COMPLETED").To(b).
		On("FAILED").Fail()
	builder.Define(b).
		On("COMPLETED").End()
	builder.Start(a)

	graph, err := builder.Build()
	require.NoError(t, err)

	target, err := graph.Resolve("a", core.ExitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "b", target)

	target, err = graph.Resolve("b", core.ExitStatusCompleted)
	require.NoError(t, err)
	endState, ok := graph.State(target)
	require.True(t, ok)
	assert.Equal(t, flow.StateKindEnd, endState.Kind())
}

// Define は同じ状態に対して冪等で、遷移は加算的に登録される。
func TestFlowBuilder_DefineIsIdempotent(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")

	builder := flow.NewFlowBuilder("idempotent")
	builder.Define(a).On("COMPLETED").To(b)
	builder.Define(b).On("COMPLETED").End()
	// 同じ状態への2回目の Define。既存の遷移は消えない。
	builder.Define(a).On("FAILED").Fail()
	builder.Start(a)

	graph, err := builder.Build()
	require.NoError(t, err)

	target, err := graph.Resolve("a", core.ExitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "b", target)

	target, err = graph.Resolve("a", core.ExitStatusFailed)
	require.NoError(t, err)
	failState, _ := graph.State(target)
	assert.Equal(t, flow.StateKindFail, failState.Kind())
}

// 具体的なパターンは、登録順にかかわらずワイルドカードより優先される。
func TestFlowBuilder_SpecificPatternBeatsWildcard(t *testing.T) {
	build := func(specificFirst bool) *flow.Graph {
		a := newNoopStep("a")
		b := newNoopStep("b")
		c := newNoopStep("c")

		builder := flow.NewFlowBuilder("precedence")
		d := builder.Define(a)
		if specificFirst {
			d.On("COMPLETED").To(b).On("*").To(c)
		} else {
			d.On("*").To(c).On("COMPLETED").To(b)
		}
		builder.Define(b).On("*").End()
		builder.Define(c).On("*").End()
		builder.Start(a)

		graph, err := builder.Build()
		require.NoError(t, err)
		return graph
	}

	for _, specificFirst := range []bool{true, false} {
		graph := build(specificFirst)

		target, err := graph.Resolve("a", core.ExitStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, "b", target, "リテラルパターンが選ばれること (specificFirst=%v)", specificFirst)

		target, err = graph.Resolve("a", core.ExitStatusFailed)
		require.NoError(t, err)
		assert.Equal(t, "c", target, "マッチしないステータスはワイルドカードに落ちること (specificFirst=%v)", specificFirst)
	}
}

// 長いプレフィックスパターンは短いものより優先される。
func TestFlowBuilder_LongerPrefixWins(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")
	c := newNoopStep("c")

	builder := flow.NewFlowBuilder("prefix")
	builder.Define(a).
		On("C*").To(c).
		On("COMPLETED*").To(b)
	builder.Define(b).On("*").End()
	builder.Define(c).On("*").End()
	builder.Start(a)

	graph, err := builder.Build()
	require.NoError(t, err)

	target, err := graph.Resolve("a", core.ExitStatus("COMPLETED_WITH_SKIPS"))
	require.NoError(t, err)
	assert.Equal(t, "b", target)

	target, err = graph.Resolve("a", core.ExitStatus("CANCELLED"))
	require.NoError(t, err)
	assert.Equal(t, "c", target)
}

func TestFlowBuilder_DuplicatePatternRejected(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")
	c := newNoopStep("c")

	builder := flow.NewFlowBuilder("dup")
	builder.Define(a).
		On("COMPLETED").To(b).
		On("COMPLETED").To(c)
	builder.Define(b).On("*").End()
	builder.Define(c).On("*").End()
	builder.Start(a)

	_, err := builder.Build()
	require.Error(t, err)

	var structural *flow.StructuralError
	require.ErrorAs(t, err, &structural)
	var dup *flow.DuplicateTransitionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.SourceName)
	assert.Equal(t, flow.Pattern("COMPLETED"), dup.Pattern)
}

// 同じ具体度で重なり得るパターンは登録時に拒否される。
func TestFlowBuilder_AmbiguousPatternRejected(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")
	c := newNoopStep("c")

	builder := flow.NewFlowBuilder("ambiguous")
	builder.Define(a).
		On("C*D").To(b).
		On("C*E").To(c) // 重ならないので許容される
	builder.Define(a).
		On("*_OK").To(b) // "C*D" とは重ならないが "C*E" とも重ならない
	builder.Define(a).
		On("CO*").To(c) // "C*D" と同じ具体度で "COMPLETED" の両方にマッチし得る
	builder.Define(b).On("*").End()
	builder.Define(c).On("*").End()
	builder.Start(a)

	_, err := builder.Build()
	require.Error(t, err)

	var ambiguous *flow.AmbiguousTransitionError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "a", ambiguous.SourceName)
}

func TestFlowBuilder_OpenOnFailsBuild(t *testing.T) {
	a := newNoopStep("a")

	builder := flow.NewFlowBuilder("open-on")
	builder.Define(a).On("COMPLETED") // To/End/Fail/Stop で閉じていない
	builder.Start(a)

	_, err := builder.Build()
	require.Error(t, err)
	var structural *flow.StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestFlowBuilder_MissingStartFailsBuild(t *testing.T) {
	a := newNoopStep("a")

	builder := flow.NewFlowBuilder("no-start")
	builder.Define(a).On("COMPLETED").End()

	_, err := builder.Build()
	require.Error(t, err)
	var structural *flow.StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestFlowBuilder_DuplicateStartRejected(t *testing.T) {
	a := newNoopStep("a")
	b := newNoopStep("b")

	builder := flow.NewFlowBuilder("double-start")
	builder.Start(a)
	builder.Start(b)
	builder.Define(a).On("COMPLETED").To(b)
	builder.Define(b).On("COMPLETED").End()

	_, err := builder.Build()
	require.Error(t, err)
}

func TestFlowBuilder_UnknownStateNameRejected(t *testing.T) {
	a := newNoopStep("a")

	builder := flow.NewFlowBuilder("unknown-name")
	builder.Define(a).On("COMPLETED").To("ghost")
	builder.Start(a)

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

// 同じ名前で種類の異なる状態の登録は StateConflictError になる。
func TestFlowBuilder_StateKindConflictRejected(t *testing.T) {
	builder := flow.NewFlowBuilder("conflict")
	builder.Define(newNoopStep("x")).On("COMPLETED").End()
	builder.Define(constDecision("x", core.ExitStatusCompleted))
	builder.Start("x")

	_, err := builder.Build()
	require.Error(t, err)
	var conflict *flow.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "x", conflict.Name)
	assert.Equal(t, flow.StateKindStep, conflict.Existing)
	assert.Equal(t, flow.StateKindDecision, conflict.Requested)
}

// 遷移を持たない非終端状態には暗黙の終端遷移が補われる。
func TestFlowBuilder_DanglingStateAutoClosed(t *testing.T) {
	graph, err := flow.NewFlowBuilder("dangling").
		Start(newNoopStep("a")).
		Next(newNoopStep("b")).
		Build()
	require.NoError(t, err)

	for _, status := range []core.ExitStatus{core.ExitStatusCompleted, core.ExitStatusFailed, core.ExitStatusStopped} {
		target, err := graph.Resolve("b", status)
		require.NoError(t, err, "status %s", status)
		s, ok := graph.State(target)
		require.True(t, ok)
		assert.True(t, flow.IsTerminalKind(s.Kind()))
	}

	// 自動補完は遷移を持たない状態だけが対象
	target, err := graph.Resolve("a", core.ExitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "b", target)
	_, err = graph.Resolve("a", core.ExitStatusFailed)
	var unresolved *flow.UnresolvedTransitionError
	assert.ErrorAs(t, err, &unresolved)
}

// 自動命名された終端擬似状態は種類ごとのプレフィックスと連番を持つ。
func TestFlowBuilder_TerminalAutoNaming(t *testing.T) {
	a := newNoopStep("a")

	builder := flow.NewFlowBuilder("terminals")
	builder.Define(a).
		On("COMPLETED").End().
		On("FAILED").Fail().
		On("STOPPED").Stop()
	builder.Start(a)

	graph, err := builder.Build()
	require.NoError(t, err)

	names := make(map[flow.StateKind]string)
	for _, s := range graph.States() {
		if flow.IsTerminalKind(s.Kind()) {
			names[s.Kind()] = s.Name()
		}
	}
	assert.Equal(t, "end0", names[flow.StateKindEnd])
	assert.Equal(t, "fail1", names[flow.StateKindFail])
	assert.Equal(t, "stop2", names[flow.StateKindStop])
}

func TestFlowBuilder_ReuseAfterBuildPanics(t *testing.T) {
	builder := flow.NewFlowBuilder("reuse")
	builder.Start(newNoopStep("a"))
	_, err := builder.Build()
	require.NoError(t, err)

	assert.Panics(t, func() { builder.Start(newNoopStep("b")) })
	assert.Panics(t, func() { builder.Define(newNoopStep("c")) })
	assert.Panics(t, func() { _, _ = builder.Build() })
}

func TestFlowBuilder_NextBeforeStartFails(t *testing.T) {
	builder := flow.NewFlowBuilder("cursorless")
	builder.Next(newNoopStep("a"))

	_, err := builder.Build()
	require.Error(t, err)
}

// ビルド失敗時は収集された全エラーが StructuralError にまとめられる。
func TestFlowBuilder_CollectsAllErrors(t *testing.T) {
	builder := flow.NewFlowBuilder("collect")
	builder.Next(newNoopStep("a"))        // カーソル未設定
	builder.Define(newNoopStep("b")).To("x") // On なしで閉じようとする

	_, err := builder.Build()
	require.Error(t, err)

	var structural *flow.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.GreaterOrEqual(t, len(structural.Errs), 2)
	// errors.Is / errors.As が個々のエラーまで到達できる
	for _, inner := range structural.Errs {
		assert.True(t, errors.Is(err, inner))
	}
}
