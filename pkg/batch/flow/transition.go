package flow

import (
	core "riptide/pkg/batch/job/core"
)

// Transition は (遷移元, パターン, 遷移先名) の三つ組です。
type Transition struct {
	SourceName string
	Pattern    Pattern
	TargetName string
}

// transitionTable は遷移の順序付きコレクションです。
// 解決の優先順位は登録順に依存せず、パターンの具体度だけで決まります。
type transitionTable struct {
	transitions []Transition
	bySource    map[string][]int // 遷移元名 -> transitions のインデックス
}

func newTransitionTable() *transitionTable {
	return &transitionTable{
		bySource: make(map[string][]int),
	}
}

// add は遷移を追加します。同一の遷移元に対するリテラル重複パターンは
// DuplicateTransitionError、具体度が同じで重なり得るパターンは
// AmbiguousTransitionError として登録時に拒否します。
func (t *transitionTable) add(sourceName string, pattern Pattern, targetName string) error {
	for _, idx := range t.bySource[sourceName] {
		existing := t.transitions[idx].Pattern
		if existing == pattern {
			return &DuplicateTransitionError{SourceName: sourceName, Pattern: pattern}
		}
		if comparePatterns(existing, pattern) == 0 && existing.Overlaps(pattern) {
			return &AmbiguousTransitionError{SourceName: sourceName, Pattern: pattern, Existing: existing}
		}
	}
	t.transitions = append(t.transitions, Transition{
		SourceName: sourceName,
		Pattern:    pattern,
		TargetName: targetName,
	})
	t.bySource[sourceName] = append(t.bySource[sourceName], len(t.transitions)-1)
	return nil
}

// resolve は遷移元の実行時 ExitStatus にマッチする遷移先名を返します。
// マッチする遷移がない場合は UnresolvedTransitionError を返します。
// 複数マッチした場合は最も具体度の高いパターンが選ばれます。
func (t *transitionTable) resolve(sourceName string, status core.ExitStatus) (string, error) {
	var best *Transition
	for _, idx := range t.bySource[sourceName] {
		tr := t.transitions[idx]
		if !tr.Pattern.Matches(status) {
			continue
		}
		if best == nil || comparePatterns(tr.Pattern, best.Pattern) < 0 {
			cp := tr
			best = &cp
		}
	}
	if best == nil {
		return "", &UnresolvedTransitionError{SourceName: sourceName, Status: status}
	}
	return best.TargetName, nil
}

// forSource は遷移元の全遷移を登録順で返します。
func (t *transitionTable) forSource(sourceName string) []Transition {
	result := make([]Transition, 0, len(t.bySource[sourceName]))
	for _, idx := range t.bySource[sourceName] {
		result = append(result, t.transitions[idx])
	}
	return result
}

// snapshot は遷移テーブルのコピーを返します。
func (t *transitionTable) snapshot() *transitionTable {
	cp := newTransitionTable()
	cp.transitions = make([]Transition, len(t.transitions))
	copy(cp.transitions, t.transitions)
	for src, idxs := range t.bySource {
		cpIdxs := make([]int, len(idxs))
		copy(cpIdxs, idxs)
		cp.bySource[src] = cpIdxs
	}
	return cp
}
