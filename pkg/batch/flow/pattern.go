package flow

import (
	"strings"

	core "riptide/pkg/batch/job/core"
)

// Pattern は実行時の ExitStatus コードに対してマッチングされる文字列パターンです。
// '*' は任意の文字列（空を含む）に、'?' はちょうど1文字にマッチします。
// それ以外の文字はリテラルとして比較されます。
type Pattern string

// PatternCompleted は Next などが暗黙に登録する正常終了パターンです。
const PatternCompleted Pattern = "COMPLETED"

// Matches はこのパターンが指定された ExitStatus にマッチするかどうかを返します。
func (p Pattern) Matches(status core.ExitStatus) bool {
	return wildcardMatch(string(p), string(status))
}

// IsExact はワイルドカードを含まないリテラルパターンかどうかを返します。
func (p Pattern) IsExact() bool {
	return !strings.ContainsAny(string(p), "*?")
}

// wildcardMatch は '*' と '?' を含むパターンマッチングを行います。
func wildcardMatch(pat, str string) bool {
	if pat == "" {
		return str == ""
	}
	switch pat[0] {
	case '*':
		// '*' は 0 文字以上の任意の文字列を消費する
		for i := 0; i <= len(str); i++ {
			if wildcardMatch(pat[1:], str[i:]) {
				return true
			}
		}
		return false
	case '?':
		return str != "" && wildcardMatch(pat[1:], str[1:])
	default:
		return str != "" && pat[0] == str[0] && wildcardMatch(pat[1:], str[1:])
	}
}

// comparePatterns は 2 つのパターンの具体度を比較します。
// a の方が具体的なら負、b の方が具体的なら正、同じ具体度なら 0 を返します。
// 優先順位は登録順に依存せず決定的です:
//  1. リテラル（ワイルドカードなし）が最優先
//  2. '*' の数が少ない方
//  3. '?' の数が少ない方
//  4. パターンが長い方（例: "COMPLETED*" は "*" より具体的）
func comparePatterns(a, b Pattern) int {
	aExact, bExact := a.IsExact(), b.IsExact()
	if aExact != bExact {
		if aExact {
			return -1
		}
		return 1
	}
	if d := strings.Count(string(a), "*") - strings.Count(string(b), "*"); d != 0 {
		return d
	}
	if d := strings.Count(string(a), "?") - strings.Count(string(b), "?"); d != 0 {
		return d
	}
	if d := len(b) - len(a); d != 0 {
		return d
	}
	return 0
}

// Overlaps は 2 つのパターンの両方にマッチする ExitStatus 文字列が
// 存在し得るかどうかを判定します。同じ具体度のパターン同士が重なる場合、
// 解決順序が定義できないため登録時に拒否する必要があります。
func (p Pattern) Overlaps(other Pattern) bool {
	return patternsIntersect(string(p), string(other))
}

// patternsIntersect は 2 つのワイルドカードパターンの共通言語が
// 空でないかどうかを再帰的に判定します。
func patternsIntersect(a, b string) bool {
	if a == "" {
		return strings.Trim(b, "*") == ""
	}
	if b == "" {
		return strings.Trim(a, "*") == ""
	}
	if a[0] == '*' {
		return patternsIntersect(a[1:], b) || patternsIntersect(a, b[1:])
	}
	if b[0] == '*' {
		return patternsIntersect(a, b[1:]) || patternsIntersect(a[1:], b)
	}
	if a[0] == '?' || b[0] == '?' || a[0] == b[0] {
		return patternsIntersect(a[1:], b[1:])
	}
	return false
}
