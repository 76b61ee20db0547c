package flow

import (
	"fmt"

	core "riptide/pkg/batch/job/core"
)

// StateDefiner はひとつの状態だけにスコープされた遷移定義オブジェクトです。
// FlowBuilder.Define が返し、共有カーソルを一切持ちません。別の状態への
// Define が間に挟まっても、この定義オブジェクトの遷移元は変わりません。
//
// StateDefiner は親ビルダーの遷移テーブルへ直接登録するため、
// ビルダーと同じく単一ゴルーチンからの利用が前提です。
type StateDefiner struct {
	builder *FlowBuilder
	state   State
	pattern *Pattern // 開いたままの On
}

// State はこの定義オブジェクトがスコープする状態を返します。
// Define に不正な要素が渡された場合は nil です。
func (d *StateDefiner) State() State {
	return d.state
}

// On はこの状態を遷移元とする遷移定義を開始します。
// To / End / Fail / Stop のいずれかで閉じる必要があり、閉じないまま
// Build するとビルドは失敗します。
func (d *StateDefiner) On(pattern string) *StateDefiner {
	d.builder.ensureMutable()
	if d.state == nil {
		return d
	}
	if d.pattern != nil {
		d.builder.recordErr(fmt.Errorf("遷移元 '%s' の On(%s) が閉じられていません", d.state.Name(), *d.pattern))
		return d
	}
	p := Pattern(pattern)
	d.pattern = &p
	d.builder.openOns++
	return d
}

// close は開いている On を遷移先で確定させます。
func (d *StateDefiner) close(target State, err error) *StateDefiner {
	if d.state == nil {
		return d
	}
	if d.pattern == nil {
		d.builder.recordErr(fmt.Errorf("遷移元 '%s' で On で開始されていない遷移を閉じようとしました", d.state.Name()))
		return d
	}
	pattern := *d.pattern
	d.pattern = nil
	d.builder.openOns--
	if err != nil {
		d.builder.recordErr(err)
		return d
	}
	if err := d.builder.table.add(d.state.Name(), pattern, target.Name()); err != nil {
		d.builder.recordErr(err)
	}
	return d
}

// To は開いている On を指定された遷移先で閉じます。
// 遷移先には State、core.Step、core.Decision、*Graph、登録済み状態の名前を渡せます。
func (d *StateDefiner) To(element any) *StateDefiner {
	d.builder.ensureMutable()
	s, err := d.builder.resolveState(element)
	return d.close(s, err)
}

// End は開いている On を正常終了の擬似状態で閉じます。
func (d *StateDefiner) End() *StateDefiner {
	d.builder.ensureMutable()
	s, err := d.builder.registry.newTerminal(StateKindEnd, core.ExitStatusCompleted)
	return d.close(s, err)
}

// Fail は開いている On を失敗終了の擬似状態で閉じます。
func (d *StateDefiner) Fail() *StateDefiner {
	d.builder.ensureMutable()
	s, err := d.builder.registry.newTerminal(StateKindFail, core.ExitStatusFailed)
	return d.close(s, err)
}

// Stop は開いている On を停止の擬似状態で閉じます。
func (d *StateDefiner) Stop() *StateDefiner {
	d.builder.ensureMutable()
	s, err := d.builder.registry.newTerminal(StateKindStop, core.ExitStatusStopped)
	return d.close(s, err)
}

// And は親ビルダーに制御を戻します。別の状態を Define するときに使用します。
func (d *StateDefiner) And() *FlowBuilder {
	return d.builder
}
