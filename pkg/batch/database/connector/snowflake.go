package connector

import (
	"database/sql"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake ドライバ

	config "riptide/pkg/batch/config"
	exception "riptide/pkg/batch/util/exception"
)

// snowflakeConnector はSnowflakeデータベースへの接続を確立するDBConnectorの実装です。
type snowflakeConnector struct{}

// Connect はSnowflakeデータベースへの接続を確立し、*sql.DBを返します。
func (c *snowflakeConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Account == "" {
		return nil, exception.NewBatchErrorf("database", "Snowflake の接続には 'account' の設定が必要です")
	}
	return openAndPing("snowflake", cfg)
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
