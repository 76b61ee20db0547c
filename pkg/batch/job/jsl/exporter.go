package jsl

import (
	flow "riptide/pkg/batch/flow"
	exception "riptide/pkg/batch/util/exception"
)

// ExportDefinition converts a serialized flow.Definition back into a JSL Job model.
// 終端擬似状態は対応する遷移の end/fail/stop フラグに畳み込まれ、
// 要素としては出力されません。コンポーネント参照は状態名をそのまま使います
// (ステップ状態の論理名がコンポーネントの登録名と一致している前提)。
func ExportDefinition(def flow.Definition) (Job, error) {
	jslFlow, err := exportFlow(def)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:   def.Name,
		Name: def.Name,
		Flow: jslFlow,
	}, nil
}

func exportFlow(def flow.Definition) (Flow, error) {
	kinds := make(map[string]flow.StateKind, len(def.States))
	for _, spec := range def.States {
		kinds[spec.Name] = spec.Kind
	}

	// 遷移を遷移元ごとにまとめる。終端への遷移はフラグに変換する。
	transitionsBySource := make(map[string][]Transition)
	for _, tr := range def.Transitions {
		t := Transition{On: tr.Pattern}
		switch kinds[tr.Target] {
		case flow.StateKindEnd:
			t.End = true
		case flow.StateKindFail:
			t.Fail = true
		case flow.StateKindStop:
			t.Stop = true
		default:
			t.To = tr.Target
		}
		transitionsBySource[tr.Source] = append(transitionsBySource[tr.Source], t)
	}

	elements := make(map[string]interface{}, len(def.States))
	for _, spec := range def.States {
		switch spec.Kind {
		case flow.StateKindStep:
			elements[spec.Name] = Step{
				ID:          spec.Name,
				Tasklet:     ComponentRef{Ref: spec.Name},
				Transitions: transitionsBySource[spec.Name],
			}
		case flow.StateKindDecision:
			elements[spec.Name] = Decision{
				ID:          spec.Name,
				Decider:     ComponentRef{Ref: spec.Name},
				Transitions: transitionsBySource[spec.Name],
			}
		case flow.StateKindFlow:
			if spec.Flow == nil {
				return Flow{}, exception.NewBatchErrorf("jsl_exporter", "サブフロー状態 '%s' にフロー定義がありません", spec.Name)
			}
			subFlow, err := exportFlow(*spec.Flow)
			if err != nil {
				return Flow{}, err
			}
			elements[spec.Name] = SubFlow{
				ID:          spec.Name,
				Flow:        subFlow,
				Transitions: transitionsBySource[spec.Name],
			}
		case flow.StateKindSplit:
			branches := make([]Flow, 0, len(spec.Branches))
			for _, branchDef := range spec.Branches {
				branchFlow, err := exportFlow(branchDef)
				if err != nil {
					return Flow{}, err
				}
				branches = append(branches, branchFlow)
			}
			elements[spec.Name] = Split{
				ID:          spec.Name,
				Branches:    branches,
				Transitions: transitionsBySource[spec.Name],
			}
		case flow.StateKindEnd, flow.StateKindFail, flow.StateKindStop:
			// 終端は遷移フラグに畳み込み済み
		default:
			return Flow{}, exception.NewBatchErrorf("jsl_exporter", "状態 '%s' の種別 '%s' は JSL に変換できません", spec.Name, spec.Kind)
		}
	}

	return Flow{
		StartElement: def.Start,
		Elements:     elements,
	}, nil
}
