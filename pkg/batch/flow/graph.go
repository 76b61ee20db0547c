package flow

import (
	"fmt"

	core "riptide/pkg/batch/job/core"
)

// Graph はビルド済みの不変なフローグラフです。開始状態、全状態、
// 全遷移テーブルを保持し、実行エンジンが Resolve で遷移先を解決しながら
// 走査します。Build 後に変更されることはありません。
type Graph struct {
	name      string
	startName string
	states    map[string]State
	order     []string
	table     *transitionTable
}

// Name はフロー名を返します。
func (g *Graph) Name() string {
	return g.name
}

// StartState は開始状態を返します。
func (g *Graph) StartState() State {
	return g.states[g.startName]
}

// State は名前で状態を取得します。
func (g *Graph) State(name string) (State, bool) {
	s, ok := g.states[name]
	return s, ok
}

// States は全状態を登録順で返します。
func (g *Graph) States() []State {
	result := make([]State, 0, len(g.order))
	for _, name := range g.order {
		result = append(result, g.states[name])
	}
	return result
}

// Transitions は全遷移を登録順で返します。
func (g *Graph) Transitions() []Transition {
	result := make([]Transition, len(g.table.transitions))
	copy(result, g.table.transitions)
	return result
}

// TransitionsFrom は指定された遷移元の遷移を返します。
func (g *Graph) TransitionsFrom(sourceName string) []Transition {
	return g.table.forSource(sourceName)
}

// Resolve は遷移元の実行時 ExitStatus にマッチする遷移先名を返します。
// マッチする遷移がない場合は UnresolvedTransitionError を返します。
// 呼び出し側はこれをフロー実行の失敗として扱う必要があり、
// 「遷移なし = 暗黙の成功」と解釈してはなりません。
func (g *Graph) Resolve(sourceName string, status core.ExitStatus) (string, error) {
	return g.table.resolve(sourceName, status)
}

// Validate はグラフの構造を検証します。
// 戻り値の警告リストには、開始状態から到達できない状態が含まれます。
// 到達不能はサブフロー合成で動的に到達し得るため、エラーではなく警告です。
// 構造エラー（未解決の遷移先、開始状態の欠落、遷移を持たない非終端状態）が
// ある場合は StructuralError を返します。サブフローと Split の分岐も
// 再帰的に検証されます。
func (g *Graph) Validate() ([]string, error) {
	var errs []error
	var warnings []string

	if g.startName == "" {
		errs = append(errs, fmt.Errorf("開始状態が設定されていません"))
	} else if _, ok := g.states[g.startName]; !ok {
		errs = append(errs, fmt.Errorf("開始状態 '%s' が状態集合に存在しません", g.startName))
	}

	for _, tr := range g.table.transitions {
		if _, ok := g.states[tr.SourceName]; !ok {
			errs = append(errs, fmt.Errorf("遷移 %s --%s--> %s の遷移元が未登録です", tr.SourceName, tr.Pattern, tr.TargetName))
		}
		if _, ok := g.states[tr.TargetName]; !ok {
			errs = append(errs, fmt.Errorf("遷移 %s --%s--> %s の遷移先が未登録です", tr.SourceName, tr.Pattern, tr.TargetName))
		}
	}

	for _, name := range g.order {
		s := g.states[name]
		if !IsTerminalKind(s.Kind()) && len(g.table.bySource[name]) == 0 {
			errs = append(errs, fmt.Errorf("非終端状態 '%s' に遷移がひとつもありません", name))
		}
	}

	// 開始状態からの到達可能性 (警告のみ)
	if g.startName != "" {
		reachable := make(map[string]bool)
		queue := []string{g.startName}
		for len(queue) > 0 {
			name := queue[0]
			queue = queue[1:]
			if reachable[name] {
				continue
			}
			reachable[name] = true
			for _, tr := range g.table.forSource(name) {
				queue = append(queue, tr.TargetName)
			}
		}
		for _, name := range g.order {
			if !reachable[name] {
				warnings = append(warnings, fmt.Sprintf("状態 '%s' は開始状態 '%s' から到達できません", name, g.startName))
			}
		}
	}

	// サブフローと Split の分岐を再帰的に検証する
	for _, name := range g.order {
		var nested []*Graph
		switch s := g.states[name].(type) {
		case *FlowState:
			nested = []*Graph{s.Graph()}
		case *SplitState:
			nested = s.Branches()
		}
		for _, sub := range nested {
			subWarnings, err := sub.Validate()
			if err != nil {
				errs = append(errs, fmt.Errorf("状態 '%s' のサブフロー '%s': %w", name, sub.Name(), err))
			}
			for _, w := range subWarnings {
				warnings = append(warnings, fmt.Sprintf("サブフロー '%s': %s", sub.Name(), w))
			}
		}
	}

	if len(errs) > 0 {
		return warnings, &StructuralError{GraphName: g.name, Errs: errs}
	}
	return warnings, nil
}
