package flow

import (
	"fmt"

	core "riptide/pkg/batch/job/core"
	logger "riptide/pkg/batch/util/logger"
)

// FlowBuilder はフローグラフを組み立てるためのビルダーです。
// 2つの構築スタイルを同一のモデル上でサポートします:
//
// チェーンスタイル（カーソル互換）:
//
//	graph, err := flow.NewFlowBuilder("myJob").
//		Start(stepA).
//		Next(stepB).
//		On("FAILED").Fail().
//		Build()
//
// 宣言スタイル（推奨）。共有カーソルを持たず、Define が返す StateDefiner は
// その状態だけにスコープされます:
//
//	b := flow.NewFlowBuilder("myJob")
//	b.Define(stepA).
//		On("COMPLETED").To(stepB).
//		On("FAILED").Fail()
//	b.Define(stepB).
//		On("COMPLETED").End()
//	b.Start(stepA)
//	graph, err := b.Build()
//
// 状態を指定する引数 (element) には State、core.Step、core.Decision、
// ビルド済みの *Graph（サブフロー）、または登録済み状態の名前 (string) を渡せます。
//
// ビルダーは単一セッション・単一ゴルーチン用です。複数ゴルーチンからの
// 同時変更には安全ではなく、Build 後の再利用もできません（パニックします）。
type FlowBuilder struct {
	name           string
	registry       *stateRegistry
	table          *transitionTable
	startName      string
	cursor         State
	pendingPattern *Pattern // チェーンスタイルで開いたままの On
	openOns        int      // 未クローズの On の総数 (StateDefiner 分を含む)
	errs           []error
	built          bool
}

// NewFlowBuilder は新しいビルダーセッションを開始します。
func NewFlowBuilder(name string) *FlowBuilder {
	return &FlowBuilder{
		name:     name,
		registry: newStateRegistry(),
		table:    newTransitionTable(),
	}
}

// Name はビルド対象のフロー名を返します。
func (b *FlowBuilder) Name() string {
	return b.name
}

// ensureMutable は Build 済みのビルダーへの変更を即座に失敗させます。
// 返却済みのグラフの不変条件を守るため、エラー収集ではなくパニックにします。
func (b *FlowBuilder) ensureMutable() {
	if b.built {
		panic(fmt.Sprintf("flow: ビルダー '%s' は Build 済みのため再利用できません", b.name))
	}
}

// recordErr は構造エラーを記録します。記録されたエラーは Build で報告されます。
func (b *FlowBuilder) recordErr(err error) {
	b.errs = append(b.errs, err)
}

// resolveState は element を State に正規化して登録します。
// string の場合は登録済み状態の名前として解決します。
func (b *FlowBuilder) resolveState(element any) (State, error) {
	switch v := element.(type) {
	case State:
		return b.registry.getOrCreate(v)
	case core.Step:
		return b.registry.getOrCreate(NewStepState(v))
	case core.Decision:
		return b.registry.getOrCreate(NewDecisionState(v))
	case *Graph:
		return b.registry.getOrCreate(NewFlowState(v))
	case string:
		s, ok := b.registry.lookup(v)
		if !ok {
			return nil, fmt.Errorf("状態 '%s' は未登録です", v)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("状態として未対応の型です: %T", element)
	}
}

// Start は開始状態を設定し、カーソルをその状態に合わせます。
// 開始状態は1度だけ設定できます。
func (b *FlowBuilder) Start(element any) *FlowBuilder {
	b.ensureMutable()
	s, err := b.resolveState(element)
	if err != nil {
		b.recordErr(err)
		return b
	}
	if b.startName != "" && b.startName != s.Name() {
		b.recordErr(fmt.Errorf("開始状態は '%s' として設定済みです ('%s' を二重設定)", b.startName, s.Name()))
		return b
	}
	b.startName = s.Name()
	b.cursor = s
	return b
}

// Next はカーソル状態から COMPLETED パターンの遷移を追加し、
// カーソルを遷移先へ進めます（チェーンスタイル）。
func (b *FlowBuilder) Next(element any) *FlowBuilder {
	b.ensureMutable()
	if b.cursor == nil {
		b.recordErr(fmt.Errorf("Next の前に Start でカーソルを設定してください"))
		return b
	}
	s, err := b.resolveState(element)
	if err != nil {
		b.recordErr(err)
		return b
	}
	if err := b.table.add(b.cursor.Name(), PatternCompleted, s.Name()); err != nil {
		b.recordErr(err)
		return b
	}
	b.cursor = s
	return b
}

// From はカーソルを登録済みの状態へ巻き戻します（チェーンスタイルの互換操作）。
// 暗黙のカーソル書き換えという性質上、宣言スタイルの Define を推奨します。
func (b *FlowBuilder) From(element any) *FlowBuilder {
	b.ensureMutable()
	s, err := b.resolveState(element)
	if err != nil {
		b.recordErr(err)
		return b
	}
	b.cursor = s
	return b
}

// On はカーソル状態を遷移元とする遷移定義を開始します。
// To / End / Fail / Stop のいずれかで閉じる必要があります。
func (b *FlowBuilder) On(pattern string) *FlowBuilder {
	b.ensureMutable()
	if b.cursor == nil {
		b.recordErr(fmt.Errorf("On の前に Start でカーソルを設定してください"))
		return b
	}
	if b.pendingPattern != nil {
		b.recordErr(fmt.Errorf("遷移元 '%s' の On(%s) が閉じられていません", b.cursor.Name(), *b.pendingPattern))
		return b
	}
	p := Pattern(pattern)
	b.pendingPattern = &p
	b.openOns++
	return b
}

// closePending は開いている On を遷移先で確定させます。
func (b *FlowBuilder) closePending(target State, err error) *FlowBuilder {
	if b.pendingPattern == nil {
		b.recordErr(fmt.Errorf("On で開始されていない遷移を閉じようとしました"))
		return b
	}
	pattern := *b.pendingPattern
	b.pendingPattern = nil
	b.openOns--
	if err != nil {
		b.recordErr(err)
		return b
	}
	if err := b.table.add(b.cursor.Name(), pattern, target.Name()); err != nil {
		b.recordErr(err)
	}
	return b
}

// To は開いている On を指定された遷移先で閉じます。カーソルは移動しません。
func (b *FlowBuilder) To(element any) *FlowBuilder {
	b.ensureMutable()
	s, err := b.resolveState(element)
	return b.closePending(s, err)
}

// End は開いている On を正常終了の擬似状態で閉じます。
func (b *FlowBuilder) End() *FlowBuilder {
	b.ensureMutable()
	s, err := b.registry.newTerminal(StateKindEnd, core.ExitStatusCompleted)
	return b.closePending(s, err)
}

// Fail は開いている On を失敗終了の擬似状態で閉じます。
func (b *FlowBuilder) Fail() *FlowBuilder {
	b.ensureMutable()
	s, err := b.registry.newTerminal(StateKindFail, core.ExitStatusFailed)
	return b.closePending(s, err)
}

// Stop は開いている On を停止の擬似状態で閉じます。
func (b *FlowBuilder) Stop() *FlowBuilder {
	b.ensureMutable()
	s, err := b.registry.newTerminal(StateKindStop, core.ExitStatusStopped)
	return b.closePending(s, err)
}

// Define は指定された状態だけにスコープされた StateDefiner を返します（宣言スタイル）。
// 同じ状態への Define は冪等で、遷移は加算的に登録されます。
// 共有カーソルは変更しません。
func (b *FlowBuilder) Define(element any) *StateDefiner {
	b.ensureMutable()
	s, err := b.resolveState(element)
	if err != nil {
		b.recordErr(err)
		return &StateDefiner{builder: b}
	}
	return &StateDefiner{builder: b, state: s}
}

// addDanglingTerminals は遷移を1つも持たない非終端状態に対して、
// COMPLETED -> End / FAILED -> Fail / STOPPED -> Stop の暗黙遷移を補います。
// チェーンスタイルで末尾の状態を明示的に終端しなくてもビルドできるようにするためです。
func (b *FlowBuilder) addDanglingTerminals() error {
	var end, fail, stop State
	for _, name := range b.registry.order {
		s, _ := b.registry.lookup(name)
		if IsTerminalKind(s.Kind()) || len(b.table.bySource[name]) > 0 {
			continue
		}
		var err error
		if end == nil {
			if end, err = b.registry.newTerminal(StateKindEnd, core.ExitStatusCompleted); err != nil {
				return err
			}
			if fail, err = b.registry.newTerminal(StateKindFail, core.ExitStatusFailed); err != nil {
				return err
			}
			if stop, err = b.registry.newTerminal(StateKindStop, core.ExitStatusStopped); err != nil {
				return err
			}
		}
		if err = b.table.add(name, Pattern(core.ExitStatusCompleted), end.Name()); err != nil {
			return err
		}
		if err = b.table.add(name, Pattern(core.ExitStatusFailed), fail.Name()); err != nil {
			return err
		}
		if err = b.table.add(name, Pattern(core.ExitStatusStopped), stop.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Build はここまでに登録された状態と遷移を不変のグラフに凍結します。
// 開いたままの On、未設定の開始状態、未解決の遷移先など、構造エラーが
// ひとつでもあればグラフは生成されず StructuralError を返します。
// Build 成功後のビルダーは再利用できません。
func (b *FlowBuilder) Build() (*Graph, error) {
	b.ensureMutable()

	errs := make([]error, 0, len(b.errs))
	errs = append(errs, b.errs...)

	if b.openOns > 0 {
		errs = append(errs, fmt.Errorf("閉じられていない On が %d 件あります", b.openOns))
	}
	if b.startName == "" {
		errs = append(errs, fmt.Errorf("開始状態が設定されていません"))
	}

	if len(errs) == 0 {
		if err := b.addDanglingTerminals(); err != nil {
			errs = append(errs, err)
		}
	}

	// 全遷移の遷移先が実在する状態を指しているか検証する
	if len(errs) == 0 {
		for _, tr := range b.table.transitions {
			if _, ok := b.registry.lookup(tr.TargetName); !ok {
				errs = append(errs, fmt.Errorf("遷移 %s --%s--> %s の遷移先が未登録です", tr.SourceName, tr.Pattern, tr.TargetName))
			}
		}
	}

	if len(errs) > 0 {
		return nil, &StructuralError{GraphName: b.name, Errs: errs}
	}

	states, order := b.registry.snapshot()
	graph := &Graph{
		name:      b.name,
		startName: b.startName,
		states:    states,
		order:     order,
		table:     b.table.snapshot(),
	}
	b.built = true
	logger.Debugf("フロー '%s' をビルドしました。状態数: %d, 遷移数: %d", b.name, len(order), len(graph.table.transitions))
	return graph, nil
}
