package flow

import (
	"fmt"
	"strings"

	core "riptide/pkg/batch/job/core"
)

// stateRegistry は1回のビルダーセッションで作成された状態を論理名で保持します。
// 同じ名前の状態は1度しか作成されず（getOrCreate セマンティクス）、削除操作はありません。
type stateRegistry struct {
	states map[string]State
	order  []string // 登録順（グラフ出力の安定性のため）
	seq    int      // 擬似状態の自動命名用カウンタ
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{
		states: make(map[string]State),
	}
}

// getOrCreate は指定された状態を登録し、登録済みの State を返します。
// 同じ名前が既に登録されている場合、種類が一致すれば既存の State を返します
// （同じ名前のステップを2回渡しても State は1つ、という同一性保証）。
// 種類が異なる場合は StateConflictError を返します。
func (r *stateRegistry) getOrCreate(s State) (State, error) {
	if existing, ok := r.states[s.Name()]; ok {
		if existing.Kind() != s.Kind() {
			return nil, &StateConflictError{
				Name:      s.Name(),
				Existing:  existing.Kind(),
				Requested: s.Kind(),
			}
		}
		return existing, nil
	}
	r.states[s.Name()] = s
	r.order = append(r.order, s.Name())
	return s, nil
}

// lookup は登録済みの状態を名前で取得します。
func (r *stateRegistry) lookup(name string) (State, bool) {
	s, ok := r.states[name]
	return s, ok
}

// newTerminal は自動命名された End/Fail/Stop 擬似状態を作成して登録します。
// 命名は "end0", "fail1" のように種類のプレフィックスと連番で行います。
func (r *stateRegistry) newTerminal(kind StateKind, status core.ExitStatus) (State, error) {
	var name string
	for {
		name = fmt.Sprintf("%s%d", strings.ToLower(string(kind)), r.seq)
		r.seq++
		if _, taken := r.states[name]; !taken {
			break
		}
	}
	var s State
	switch kind {
	case StateKindEnd:
		s = NewEndState(name, status)
	case StateKindFail:
		s = NewFailState(name)
	case StateKindStop:
		s = NewStopState(name)
	default:
		return nil, fmt.Errorf("終端状態の種類ではありません: %s", kind)
	}
	return r.getOrCreate(s)
}

// snapshot は登録済みの状態のコピーを登録順とともに返します。
// ビルド後のグラフがビルダーの内部状態と共有されないようにします。
func (r *stateRegistry) snapshot() (map[string]State, []string) {
	states := make(map[string]State, len(r.states))
	for k, v := range r.states {
		states[k] = v
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	return states, order
}
