package flow

import (
	"fmt"

	core "riptide/pkg/batch/job/core"
)

// StateKind はフローグラフ内の状態の種類を表します。
type StateKind string

const (
	StateKindStep     StateKind = "STEP"
	StateKindDecision StateKind = "DECISION"
	StateKindSplit    StateKind = "SPLIT"
	StateKindFlow     StateKind = "FLOW"
	StateKindEnd      StateKind = "END"
	StateKindFail     StateKind = "FAIL"
	StateKindStop     StateKind = "STOP"
)

// State はフローグラフのノードです。論理名が同一性そのものであり、
// 一度作成された State は不変です。
type State interface {
	Name() string
	Kind() StateKind
}

// IsTerminalKind は End/Fail/Stop の擬似状態かどうかを判定します。
func IsTerminalKind(k StateKind) bool {
	return k == StateKindEnd || k == StateKindFail || k == StateKindStop
}

// StepState は core.Step をラップした状態です。
type StepState struct {
	name string
	step core.Step
}

// NewStepState は Step の論理名を同一性として StepState を作成します。
func NewStepState(step core.Step) *StepState {
	return &StepState{name: step.ID(), step: step}
}

func (s *StepState) Name() string    { return s.name }
func (s *StepState) Kind() StateKind { return StateKindStep }

// Step はラップしている core.Step を返します。
func (s *StepState) Step() core.Step { return s.step }

// DecisionState は core.Decision をラップした状態です。
type DecisionState struct {
	name     string
	decision core.Decision
}

// NewDecisionState は Decision の論理名を同一性として DecisionState を作成します。
func NewDecisionState(decision core.Decision) *DecisionState {
	return &DecisionState{name: decision.ID(), decision: decision}
}

func (s *DecisionState) Name() string    { return s.name }
func (s *DecisionState) Kind() StateKind { return StateKindDecision }

// Decision はラップしている core.Decision を返します。
func (s *DecisionState) Decision() core.Decision { return s.decision }

// FlowState はビルド済みのサブフローをひとつの状態として扱います。
type FlowState struct {
	name  string
	graph *Graph
}

// NewFlowState はサブフローのグラフ名を同一性として FlowState を作成します。
func NewFlowState(graph *Graph) *FlowState {
	return &FlowState{name: graph.Name(), graph: graph}
}

func (s *FlowState) Name() string    { return s.name }
func (s *FlowState) Kind() StateKind { return StateKindFlow }

// Graph はサブフローのグラフを返します。
func (s *FlowState) Graph() *Graph { return s.graph }

// AggregationPolicy は Split の全分岐の ExitStatus から Split 自身の
// ExitStatus を決定するためのポリシーです。
type AggregationPolicy func(statuses []core.ExitStatus) core.ExitStatus

// AnyFailWins はデフォルトの集約ポリシーです。ひとつでも FAILED の分岐が
// あれば FAILED、なければ STOPPED > COMPLETED の順で集約します。
func AnyFailWins(statuses []core.ExitStatus) core.ExitStatus {
	result := core.ExitStatusCompleted
	for _, st := range statuses {
		switch st {
		case core.ExitStatusFailed:
			return core.ExitStatusFailed
		case core.ExitStatusStopped:
			result = core.ExitStatusStopped
		}
	}
	return result
}

// SplitOption は NewSplit に渡す Split のオプションです。
type SplitOption func(*SplitState)

// WithAggregation は分岐ステータスの集約ポリシーを差し替えます。
func WithAggregation(policy AggregationPolicy) SplitOption {
	return func(s *SplitState) { s.aggregate = policy }
}

// WithCancelSiblings は最初の回復不能な失敗が発生した時点で、
// 残りの分岐をキャンセルするポリシーを有効にします。
func WithCancelSiblings() SplitOption {
	return func(s *SplitState) { s.cancelSiblings = true }
}

// SplitState は複数のサブグラフを並列実行する擬似状態です。
// 全分岐が終了ステータスを報告するまで自身の遷移解決はブロックされます（join セマンティクス）。
type SplitState struct {
	name           string
	branches       []*Graph
	aggregate      AggregationPolicy
	cancelSiblings bool
}

// NewSplit は Split 状態を作成します。parts には分岐と SplitOption を混在して
// 渡せます。分岐として受け付けるのは以下で、呼び出し側での事前ラップは不要です:
//   - *Graph: ビルド済みのサブフロー
//   - State / core.Step / core.Decision: 単一状態の分岐（自動的にサブフロー化される）
//   - []any: 状態の列（COMPLETED で連結されたサブフローに自動変換される）
func NewSplit(name string, parts ...any) (*SplitState, error) {
	s := &SplitState{
		name:      name,
		aggregate: AnyFailWins,
	}
	branchIndex := 0
	for _, part := range parts {
		if opt, ok := part.(SplitOption); ok {
			opt(s)
			continue
		}
		branch, err := wrapBranch(fmt.Sprintf("%s.branch%d", name, branchIndex), part)
		if err != nil {
			return nil, err
		}
		s.branches = append(s.branches, branch)
		branchIndex++
	}
	if len(s.branches) == 0 {
		return nil, fmt.Errorf("split '%s' に分岐がありません", name)
	}
	return s, nil
}

func (s *SplitState) Name() string    { return s.name }
func (s *SplitState) Kind() StateKind { return StateKindSplit }

// Branches は分岐のサブグラフを返します。
func (s *SplitState) Branches() []*Graph { return s.branches }

// Aggregate は集約ポリシーを適用して Split 自身の ExitStatus を決定します。
func (s *SplitState) Aggregate(statuses []core.ExitStatus) core.ExitStatus {
	return s.aggregate(statuses)
}

// CancelSiblings は失敗時に残りの分岐をキャンセルするかどうかを返します。
func (s *SplitState) CancelSiblings() bool { return s.cancelSiblings }

// wrapBranch は分岐指定をサブフローのグラフに正規化します。
func wrapBranch(name string, part any) (*Graph, error) {
	switch v := part.(type) {
	case *Graph:
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("分岐 '%s' の状態列が空です", name)
		}
		b := NewFlowBuilder(name)
		b.Start(v[0])
		for _, el := range v[1:] {
			b.Next(el)
		}
		return b.Build()
	case State, core.Step, core.Decision:
		b := NewFlowBuilder(name)
		b.Start(v)
		return b.Build()
	default:
		return nil, fmt.Errorf("分岐 '%s' に未対応の型 %T が指定されました", name, part)
	}
}

// EndState はフローを正常終了させる擬似状態です。
type EndState struct {
	name   string
	status core.ExitStatus
}

// NewEndState は明示的な名前で EndState を作成します。
// 通常は StateDefiner.End が自動命名で作成します。
func NewEndState(name string, status core.ExitStatus) *EndState {
	return &EndState{name: name, status: status}
}

func (s *EndState) Name() string    { return s.name }
func (s *EndState) Kind() StateKind { return StateKindEnd }

// ExitStatus はこの終端に到達したフローの確定ステータスを返します。
func (s *EndState) ExitStatus() core.ExitStatus { return s.status }

// FailState はフローを失敗として終了させる擬似状態です。
type FailState struct {
	name string
}

// NewFailState は明示的な名前で FailState を作成します。
func NewFailState(name string) *FailState {
	return &FailState{name: name}
}

func (s *FailState) Name() string    { return s.name }
func (s *FailState) Kind() StateKind { return StateKindFail }

// StopState はフローを停止させる擬似状態です。
type StopState struct {
	name string
}

// NewStopState は明示的な名前で StopState を作成します。
func NewStopState(name string) *StopState {
	return &StopState{name: name}
}

func (s *StopState) Name() string    { return s.name }
func (s *StopState) Kind() StateKind { return StateKindStop }
