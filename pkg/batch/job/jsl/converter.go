package jsl

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	step "riptide/pkg/batch/step"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// ConvertJSLToGraph converts a JSL Job definition into a compiled flow.Graph.
// componentRegistry にはビルド済みのコンポーネント (core.Tasklet, core.Decision)
// を登録しておきます。参照されたコンポーネントが見つからない、または型が
// 不正な場合はエラーを返します。
func ConvertJSLToGraph(jslJob Job, componentRegistry map[string]any, stepListeners []core.StepExecutionListener) (*flow.Graph, error) {
	return convertFlow(jslJob.ID, jslJob.Flow, componentRegistry, stepListeners)
}

// convertFlow converts a JSL Flow (top-level or nested) into a flow.Graph.
func convertFlow(name string, jslFlow Flow, componentRegistry map[string]any, stepListeners []core.StepExecutionListener) (*flow.Graph, error) {
	if jslFlow.StartElement == "" {
		return nil, exception.NewBatchErrorf("jsl_converter", "フロー '%s' に 'start-element' が定義されていません", name)
	}
	if _, ok := jslFlow.Elements[jslFlow.StartElement]; !ok {
		return nil, exception.NewBatchErrorf("jsl_converter", "フロー '%s' の 'start-element' '%s' が 'elements' に見つかりません", name, jslFlow.StartElement)
	}

	b := flow.NewFlowBuilder(name)

	// 要素の登録順を安定させるため、IDでソートして処理する。
	// 終端擬似状態の自動命名が決定的になる。
	ids := make([]string, 0, len(jslFlow.Elements))
	for id := range jslFlow.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// 1パス目: 全要素を状態として登録する
	transitionsByID := make(map[string][]Transition)
	for _, id := range ids {
		elemBytes, err := yaml.Marshal(jslFlow.Elements[id])
		if err != nil {
			return nil, exception.NewBatchError("jsl_converter", fmt.Sprintf("フロー要素 '%s' の再マーシャルに失敗しました", id), err, false, false)
		}

		transitions, err := registerElement(b, id, elemBytes, componentRegistry, stepListeners)
		if err != nil {
			return nil, err
		}
		transitionsByID[id] = transitions
	}

	// 2パス目: 遷移を登録する
	for _, id := range ids {
		transitions := transitionsByID[id]
		for _, t := range transitions {
			if err := validateTransition(id, t, jslFlow.Elements); err != nil {
				return nil, err
			}
			d := b.Define(id).On(t.On)
			switch {
			case t.End:
				d.End()
			case t.Fail:
				d.Fail()
			case t.Stop:
				d.Stop()
			default:
				d.To(t.To)
			}
		}
	}

	b.Start(jslFlow.StartElement)
	graph, err := b.Build()
	if err != nil {
		return nil, exception.NewBatchError("jsl_converter", fmt.Sprintf("フロー '%s' のグラフ構築に失敗しました", name), err, false, false)
	}
	logger.Debugf("JSL フロー '%s' をグラフに変換したよ (states: %d)", name, len(graph.States()))
	return graph, nil
}

// registerElement unmarshals a single flow element and registers it on the builder.
// 要素の種類はフィールドの有無で判別する: tasklet -> Step, branches -> Split,
// flow -> SubFlow, それ以外 -> Decision。
func registerElement(b *flow.FlowBuilder, id string, elemBytes []byte, componentRegistry map[string]any, stepListeners []core.StepExecutionListener) ([]Transition, error) {
	// Try to unmarshal as Step
	var jslStep Step
	if err := yaml.Unmarshal(elemBytes, &jslStep); err == nil && jslStep.Tasklet.Ref != "" {
		if jslStep.ID != "" && jslStep.ID != id {
			return nil, exception.NewBatchErrorf("jsl_converter", "ステップ '%s' のIDがマップのキー '%s' と一致しません", jslStep.ID, id)
		}
		tasklet, ok := componentRegistry[jslStep.Tasklet.Ref].(core.Tasklet)
		if !ok {
			return nil, exception.NewBatchErrorf("jsl_converter", "タスクレット '%s' が見つからないか、不正な型です (期待: core.Tasklet)", jslStep.Tasklet.Ref)
		}
		b.Define(step.NewTaskletStep(id, tasklet, stepListeners))
		return jslStep.Transitions, nil
	}

	// Try to unmarshal as Split
	var jslSplit Split
	if err := yaml.Unmarshal(elemBytes, &jslSplit); err == nil && len(jslSplit.Branches) > 0 {
		if jslSplit.ID != "" && jslSplit.ID != id {
			return nil, exception.NewBatchErrorf("jsl_converter", "スプリット '%s' のIDがマップのキー '%s' と一致しません", jslSplit.ID, id)
		}
		parts := make([]any, 0, len(jslSplit.Branches)+1)
		for i, branchFlow := range jslSplit.Branches {
			branchGraph, err := convertFlow(fmt.Sprintf("%s.branch%d", id, i), branchFlow, componentRegistry, stepListeners)
			if err != nil {
				return nil, err
			}
			parts = append(parts, branchGraph)
		}
		switch jslSplit.Aggregation {
		case "", "any-fail-wins":
			// デフォルトの集約ポリシー
		default:
			return nil, exception.NewBatchErrorf("jsl_converter", "スプリット '%s' の集約ポリシー '%s' は未対応です", id, jslSplit.Aggregation)
		}
		if jslSplit.CancelSiblings {
			parts = append(parts, flow.WithCancelSiblings())
		}
		split, err := flow.NewSplit(id, parts...)
		if err != nil {
			return nil, exception.NewBatchError("jsl_converter", fmt.Sprintf("スプリット '%s' の構築に失敗しました", id), err, false, false)
		}
		b.Define(split)
		return jslSplit.Transitions, nil
	}

	// Try to unmarshal as SubFlow
	var jslSubFlow SubFlow
	if err := yaml.Unmarshal(elemBytes, &jslSubFlow); err == nil && jslSubFlow.Flow.StartElement != "" {
		if jslSubFlow.ID != "" && jslSubFlow.ID != id {
			return nil, exception.NewBatchErrorf("jsl_converter", "サブフロー '%s' のIDがマップのキー '%s' と一致しません", jslSubFlow.ID, id)
		}
		subGraph, err := convertFlow(id, jslSubFlow.Flow, componentRegistry, stepListeners)
		if err != nil {
			return nil, err
		}
		b.Define(subGraph)
		return jslSubFlow.Transitions, nil
	}

	// Fall back to Decision
	var jslDecision Decision
	if err := yaml.Unmarshal(elemBytes, &jslDecision); err != nil || jslDecision.ID == "" {
		return nil, exception.NewBatchErrorf("jsl_converter", "不明なフロー要素の型または必須フィールドが不足しています (ID: %s)", id)
	}
	if jslDecision.ID != id {
		return nil, exception.NewBatchErrorf("jsl_converter", "デシジョン '%s' のIDがマップのキー '%s' と一致しません", jslDecision.ID, id)
	}
	if len(jslDecision.Transitions) == 0 {
		return nil, exception.NewBatchErrorf("jsl_converter", "デシジョン '%s' に遷移ルールが定義されていません", id)
	}

	var decision core.Decision
	if jslDecision.Decider.Ref != "" {
		d, ok := componentRegistry[jslDecision.Decider.Ref].(core.Decision)
		if !ok {
			return nil, exception.NewBatchErrorf("jsl_converter", "デサイダー '%s' が見つからないか、不正な型です (期待: core.Decision)", jslDecision.Decider.Ref)
		}
		decision = d
	} else {
		cd := core.NewConditionalDecision(id)
		cd.SetProperties(jslDecision.Properties)
		decision = cd
	}
	if decision.ID() != id {
		return nil, exception.NewBatchErrorf("jsl_converter", "デシジョン '%s' の解決結果のIDがマップのキー '%s' と一致しません", decision.ID(), id)
	}
	b.Define(decision)
	return jslDecision.Transitions, nil
}

// validateTransition validates a single transition rule.
func validateTransition(fromElementID string, t Transition, allElements map[string]interface{}) error {
	if t.On == "" {
		return exception.NewBatchErrorf("jsl_converter", "フロー要素 '%s' の遷移ルールに 'on' が定義されていません", fromElementID)
	}

	// Check mutual exclusivity of End, Fail, Stop, To
	exclusiveCount := 0
	if t.End {
		exclusiveCount++
	}
	if t.Fail {
		exclusiveCount++
	}
	if t.Stop {
		exclusiveCount++
	}
	if t.To != "" {
		exclusiveCount++
	}

	if exclusiveCount == 0 {
		return exception.NewBatchErrorf("jsl_converter", "フロー要素 '%s' の遷移ルール (on: '%s') に 'to', 'end', 'fail', 'stop' のいずれも定義されていません", fromElementID, t.On)
	}
	if exclusiveCount > 1 {
		return exception.NewBatchErrorf("jsl_converter", "フロー要素 '%s' の遷移ルール (on: '%s') は 'to', 'end', 'fail', 'stop' のうち複数定義されています。これらは排他的です。", fromElementID, t.On)
	}

	// If 'to' is specified, ensure the target element exists
	if t.To != "" {
		if _, ok := allElements[t.To]; !ok {
			return exception.NewBatchErrorf("jsl_converter", "フロー要素 '%s' の遷移ルール (on: '%s') の 'to' で指定された要素 '%s' が見つかりません", fromElementID, t.On, t.To)
		}
	}
	return nil
}
