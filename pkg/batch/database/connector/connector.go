package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	config "riptide/pkg/batch/config"
	database "riptide/pkg/batch/database"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// DBConnector は特定のデータベースタイプへの接続を確立するためのインターフェースです。
type DBConnector interface {
	Connect(cfg config.DatabaseConfig) (*sql.DB, error)
}

// connectors は登録されたDBConnectorの実装を保持するマップです。
var connectors = make(map[string]DBConnector)

// RegisterConnector は指定されたタイプ名でDBConnectorを登録します。
// 同じタイプ名で再登録すると上書きされます。
func RegisterConnector(dbType string, connector DBConnector) {
	connectors[strings.ToLower(dbType)] = connector
}

// GetSQLDB は設定に基づいて適切なデータベース接続を確立します。
// 登録されたコネクタの中から適切なものを選択して接続します。
func GetSQLDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	connector, ok := connectors[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, exception.NewBatchErrorf("database", "未対応のデータベースタイプ: %s", cfg.Type)
	}
	return connector.Connect(cfg)
}

// NewDBConnectionFromConfig は設定に基づいて適切なデータベース接続を確立し、
// DBConnection インターフェースに適合させて返します。
func NewDBConnectionFromConfig(ctx context.Context, cfg config.DatabaseConfig) (database.DBConnection, error) {
	rawDB, err := GetSQLDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, exception.NewBatchError("database", "データベースへのPingに失敗しました", err, true, false)
	}
	return database.NewSQLDBAdapter(rawDB), nil
}

// applyPoolSettings はコネクションプール設定を *sql.DB に適用します。
func applyPoolSettings(db *sql.DB, pool config.ConnectionPoolConfig) {
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
}

// openAndPing はドライバ名と接続文字列から接続を確立する共通処理です。
func openAndPing(driverName string, cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := cfg.ConnectionString()
	if connStr == "" {
		return nil, exception.NewBatchErrorf("database", "データベースタイプ '%s' の接続文字列を組み立てられません", cfg.Type)
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, exception.NewBatchError("database", fmt.Sprintf("%s への接続に失敗しました", driverName), err, false, false)
	}

	applyPoolSettings(db, cfg.ConnectionPool)

	if err := db.Ping(); err != nil {
		db.Close() // エラー時は接続を閉じる
		return nil, exception.NewBatchError("database", fmt.Sprintf("%s への Ping に失敗しました", driverName), err, true, false)
	}

	logger.Debugf("%s に正常に接続したよ。MaxOpenConns: %d, MaxIdleConns: %d",
		driverName, cfg.ConnectionPool.MaxOpenConns, cfg.ConnectionPool.MaxIdleConns)
	return db, nil
}
