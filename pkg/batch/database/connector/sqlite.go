package connector

import (
	"database/sql"

	_ "modernc.org/sqlite" // CGO 不要の SQLite ドライバ

	config "riptide/pkg/batch/config"
	exception "riptide/pkg/batch/util/exception"
)

// sqliteConnector はSQLiteデータベースへの接続を確立するDBConnectorの実装です。
// ローカル実行やテストでの利用を想定しています。
type sqliteConnector struct{}

// Connect はSQLiteデータベースファイルへの接続を確立し、*sql.DBを返します。
func (c *sqliteConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, exception.NewBatchErrorf("database", "SQLite の接続には 'path' の設定が必要です")
	}
	return openAndPing("sqlite", cfg)
}

func init() {
	RegisterConnector("sqlite", &sqliteConnector{})
}
