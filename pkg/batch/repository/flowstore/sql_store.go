package flowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	database "riptide/pkg/batch/database"
	flow "riptide/pkg/batch/flow"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// ErrNotFound は指定された名前のフロー定義が存在しないことを示します。
var ErrNotFound = errors.New("フロー定義が見つかりません")

// SQLStore は Store の SQL 実装です。定義本体は flow_definitions に JSON で保存し、
// 状態と遷移は検索用に flow_states / flow_transitions へ展開します。
type SQLStore struct {
	db     database.DBConnection
	dbType string
}

// NewSQLStore は SQLStore の新しいインスタンスを作成します。
// dbType はプレースホルダ形式の切り替えに使用します (postgres/redshift は $N、それ以外は ?)。
func NewSQLStore(db database.DBConnection, dbType string) *SQLStore {
	return &SQLStore{db: db, dbType: strings.ToLower(dbType)}
}

// rebind はクエリのプレースホルダをデータベースの形式に変換します。
// クエリは $N 形式で記述し、必要に応じて ? 形式に書き換えます。
func (s *SQLStore) rebind(query string) string {
	switch s.dbType {
	case "postgres", "redshift":
		return query
	}
	var sb strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			sb.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// Save はグラフを直列化してカタログに保存します。
// 定義本体と検索用の展開テーブルを単一トランザクションで書き換えます。
func (s *SQLStore) Save(ctx context.Context, graph *flow.Graph) error {
	def := graph.Export()
	payload, err := json.Marshal(def)
	if err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の直列化に失敗しました", def.Name), err, false, false)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return exception.NewBatchError("flowstore", "トランザクションの開始に失敗しました", err, true, false)
	}
	defer tx.Rollback()

	now := time.Now()

	// 同名の定義は洗い替えする
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM flow_definitions WHERE name = $1`), def.Name); err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の削除に失敗しました", def.Name), err, true, false)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM flow_states WHERE flow_name = $1`), def.Name); err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の状態の削除に失敗しました", def.Name), err, true, false)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM flow_transitions WHERE flow_name = $1`), def.Name); err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の遷移の削除に失敗しました", def.Name), err, true, false)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO flow_definitions (name, start_state, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`),
		def.Name, def.Start, string(payload), now, now); err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の保存に失敗しました", def.Name), err, true, false)
	}

	for i, state := range def.States {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO flow_states (flow_name, state_name, kind, exit_status, position)
			VALUES ($1, $2, $3, $4, $5)`),
			def.Name, state.Name, string(state.Kind), string(state.ExitStatus), i); err != nil {
			return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の状態 '%s' の保存に失敗しました", def.Name, state.Name), err, true, false)
		}
	}

	for i, tr := range def.Transitions {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO flow_transitions (flow_name, source_state, pattern, target_state, position)
			VALUES ($1, $2, $3, $4, $5)`),
			def.Name, tr.Source, tr.Pattern, tr.Target, i); err != nil {
			return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の遷移 '%s' -> '%s' の保存に失敗しました", def.Name, tr.Source, tr.Target), err, true, false)
		}
	}

	if err := tx.Commit(); err != nil {
		return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の保存のコミットに失敗しました", def.Name), err, true, false)
	}

	logger.Debugf("フロー定義 '%s' をカタログに保存したよ (states: %d, transitions: %d)",
		def.Name, len(def.States), len(def.Transitions))
	return nil
}

// LoadDefinition は保存された定義を名前で取得します。
func (s *SQLStore) LoadDefinition(ctx context.Context, name string) (flow.Definition, error) {
	var payload string
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT definition FROM flow_definitions WHERE name = $1`), name)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return flow.Definition{}, fmt.Errorf("フロー定義 '%s': %w", name, ErrNotFound)
		}
		return flow.Definition{}, exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の取得に失敗しました", name), err, true, false)
	}

	var def flow.Definition
	if err := json.Unmarshal([]byte(payload), &def); err != nil {
		return flow.Definition{}, exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の復元に失敗しました", name), err, false, false)
	}
	return def, nil
}

// LoadGraph は保存された定義からグラフを復元します。
func (s *SQLStore) LoadGraph(ctx context.Context, name string, resolver flow.ComponentResolver) (*flow.Graph, error) {
	def, err := s.LoadDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	graph, err := flow.FromDefinition(def, resolver)
	if err != nil {
		return nil, exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' のグラフ再構築に失敗しました", name), err, false, false)
	}
	return graph, nil
}

// List は保存されている定義の名前を返します。
func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM flow_definitions ORDER BY name`)
	if err != nil {
		return nil, exception.NewBatchError("flowstore", "フロー定義の一覧取得に失敗しました", err, true, false)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, exception.NewBatchError("flowstore", "フロー定義の一覧の読み取りに失敗しました", err, true, false)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewBatchError("flowstore", "フロー定義の一覧の読み取りに失敗しました", err, true, false)
	}
	return names, nil
}

// Delete は定義と展開テーブルの行を削除します。
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return exception.NewBatchError("flowstore", "トランザクションの開始に失敗しました", err, true, false)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM flow_transitions WHERE flow_name = $1`,
		`DELETE FROM flow_states WHERE flow_name = $1`,
		`DELETE FROM flow_definitions WHERE name = $1`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(query), name); err != nil {
			return exception.NewBatchError("flowstore", fmt.Sprintf("フロー定義 '%s' の削除に失敗しました", name), err, true, false)
		}
	}
	return tx.Commit()
}

// Close は基盤のデータベース接続を閉じます。
func (s *SQLStore) Close() error {
	return s.db.Close()
}
