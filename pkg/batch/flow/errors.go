package flow

import (
	"fmt"
	"strings"

	core "riptide/pkg/batch/job/core"
)

// StructuralError はビルド時または検証時に検出されたグラフ構造の問題をまとめたエラーです。
// 1回の Build で検出された全ての構造エラーを保持します。
type StructuralError struct {
	GraphName string
	Errs      []error
}

// Error は error インターフェースの実装です。
func (e *StructuralError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("フロー '%s' の構造エラー: %s", e.GraphName, strings.Join(msgs, "; "))
}

// Unwrap は内包するエラーのリストを返します。errors.Is / errors.As が
// 個々の構造エラーまで到達できるようにします。
func (e *StructuralError) Unwrap() []error {
	return e.Errs
}

// DuplicateTransitionError は同一の遷移元に同一のパターンが二重登録されたことを表します。
// 後勝ちの上書きはせず、登録時に拒否します。
type DuplicateTransitionError struct {
	SourceName string
	Pattern    Pattern
}

func (e *DuplicateTransitionError) Error() string {
	return fmt.Sprintf("遷移元 '%s' にパターン '%s' が既に登録されています", e.SourceName, e.Pattern)
}

// AmbiguousTransitionError は同一の遷移元に、優先順位規則で順序付けできない
// （同じ具体度で同じステータスにマッチし得る）パターンが登録されたことを表します。
// 解決時まで遅延せず、登録時に拒否します。
type AmbiguousTransitionError struct {
	SourceName string
	Pattern    Pattern
	Existing   Pattern
}

func (e *AmbiguousTransitionError) Error() string {
	return fmt.Sprintf("遷移元 '%s' のパターン '%s' は既存のパターン '%s' と優先順位が決められません", e.SourceName, e.Pattern, e.Existing)
}

// UnresolvedTransitionError は実行時の ExitStatus がどの遷移パターンにも
// マッチしなかったことを表します。暗黙の成功扱いはせず、フローの失敗として扱います。
type UnresolvedTransitionError struct {
	SourceName string
	Status     core.ExitStatus
}

func (e *UnresolvedTransitionError) Error() string {
	return fmt.Sprintf("遷移元 '%s' の ExitStatus '%s' にマッチする遷移がありません", e.SourceName, e.Status)
}

// StateConflictError は同じ名前で種類の異なる状態が登録されようとしたことを表します。
type StateConflictError struct {
	Name      string
	Existing  StateKind
	Requested StateKind
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("状態 '%s' は %s として登録済みのため %s として再登録できません", e.Name, e.Existing, e.Requested)
}
