package core

import (
	"context"
	"fmt"

	logger "riptide/pkg/batch/util/logger"
)

// ConditionalDecision は ExecutionContext の値に基づいて遷移を決定する Decision 実装です。
// プロパティで参照するキーと期待値、および判定結果の ExitStatus を指定します。
//   - context_key:    参照する ExecutionContext のキー (ドット区切りでネスト参照可能)
//   - expected_value: 期待する値 (文字列比較)
//   - true_status:    一致した場合に返す ExitStatus (デフォルト: COMPLETED)
//   - false_status:   一致しなかった場合に返す ExitStatus (デフォルト: FAILED)
type ConditionalDecision struct {
	id         string
	properties map[string]string
}

// NewConditionalDecision は ConditionalDecision の新しいインスタンスを返します。
func NewConditionalDecision(id string) *ConditionalDecision {
	return &ConditionalDecision{
		id:         id,
		properties: make(map[string]string),
	}
}

// SetProperties は JSL で定義されたプロパティを設定します。
func (d *ConditionalDecision) SetProperties(props map[string]string) {
	if props != nil {
		d.properties = props
	}
}

// ID は FlowElement インターフェースを実装します。
func (d *ConditionalDecision) ID() string { return d.id }

// DecisionName は Decision インターフェースを実装します。
func (d *ConditionalDecision) DecisionName() string { return d.id }

// Decide は ExecutionContext の値とプロパティの期待値を比較して ExitStatus を返します。
func (d *ConditionalDecision) Decide(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) (ExitStatus, error) {
	select {
	case <-ctx.Done():
		return ExitStatusFailed, ctx.Err()
	default:
	}

	key := d.properties["context_key"]
	if key == "" {
		return ExitStatusFailed, fmt.Errorf("decision '%s': プロパティ context_key が設定されていません", d.id)
	}

	trueStatus := ExitStatus(d.properties["true_status"])
	if trueStatus == "" {
		trueStatus = ExitStatusCompleted
	}
	falseStatus := ExitStatus(d.properties["false_status"])
	if falseStatus == "" {
		falseStatus = ExitStatusFailed
	}

	value, ok := jobExecution.ExecutionContext.GetNested(key)
	if !ok {
		logger.Debugf("decision '%s': ExecutionContext にキー '%s' が見つからなかったよ", d.id, key)
		return falseStatus, nil
	}

	actual := fmt.Sprintf("%v", value)
	if actual == d.properties["expected_value"] {
		logger.Debugf("decision '%s': キー '%s' の値 '%s' が期待値と一致したよ (-> %s)", d.id, key, actual, trueStatus)
		return trueStatus, nil
	}
	logger.Debugf("decision '%s': キー '%s' の値 '%s' は期待値 '%s' と不一致だよ (-> %s)",
		d.id, key, actual, d.properties["expected_value"], falseStatus)
	return falseStatus, nil
}

// DecisionFunc は関数を Decision として扱うためのアダプタです。
type DecisionFunc struct {
	Name string
	Func func(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) (ExitStatus, error)
}

// ID は FlowElement インターフェースを実装します。
func (d *DecisionFunc) ID() string { return d.Name }

// DecisionName は Decision インターフェースを実装します。
func (d *DecisionFunc) DecisionName() string { return d.Name }

// Decide は保持している関数に処理を委譲します。
func (d *DecisionFunc) Decide(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) (ExitStatus, error) {
	return d.Func(ctx, jobExecution, jobParameters)
}
