package database

import (
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"     // MySQL ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/postgres"  // PostgreSQL および Redshift ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/snowflake" // Snowflake ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"    // SQLite ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/source/file"        // ファイルソースドライバを登録

	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// migrationsTable はフローカタログのマイグレーション履歴を記録するテーブル名です。
// アプリケーション自身の schema_migrations と衝突しないように分離しておきます。
const migrationsTable = "riptide_schema_migrations"

// RunMigrations は指定されたデータベースにマイグレーションを実行します。
//
// dbType: データベースの種類 (例: "postgres", "mysql", "redshift", "snowflake", "sqlite")
// connectionString: データベースへの接続文字列 (config.DatabaseConfig.ConnectionString() から取得される形式)
// migrationsPath: SQLマイグレーションファイルが配置されているディレクトリ (例: "./migrations/postgres")
func RunMigrations(dbType, connectionString, migrationsPath string) error {
	if migrationsPath == "" {
		logger.Infof("マイグレーションパスが指定されていないのでスキップするよ。")
		return nil
	}

	logger.Infof("データベースマイグレーションを開始するよ。DBタイプ: %s, マイグレーションパス: %s", dbType, migrationsPath)

	// golang-migrate/migrate が期待するデータベースURL形式に調整する。
	// ConnectionString() は PostgreSQL/Redshift ではスキーム付きだが、
	// MySQL/SQLite/Snowflake ではスキームなしの DSN を返す。
	databaseURL := connectionString
	switch strings.ToLower(dbType) {
	case "postgres", "redshift":
		databaseURL = appendParam(databaseURL, "x-migrations-table="+migrationsTable)
	case "mysql":
		databaseURL = appendParam("mysql://"+connectionString, "x-migrations-table="+migrationsTable)
	case "snowflake":
		databaseURL = appendParam("snowflake://"+connectionString, "x-migrations-table="+migrationsTable)
	case "sqlite":
		databaseURL = appendParam("sqlite://"+connectionString, "x-migrations-table="+migrationsTable)
	default:
		return exception.NewBatchErrorf("migration", "サポートされていないデータベースタイプ: %s", dbType)
	}

	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		databaseURL,
	)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションインスタンスの作成に失敗しました", err, false, false)
	}
	defer m.Close()

	// すべてのアップマイグレーションを実行
	if err = m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			logger.Infof("マイグレーションは不要だよ。データベースは最新の状態。")
			return nil // 変更がない場合はエラーではない
		}
		return exception.NewBatchError("migration", "マイグレーションの実行に失敗しました", err, false, false)
	}

	logger.Infof("データベースマイグレーションが正常に完了したよ。")
	return nil
}

// appendParam はデータベースURLにクエリパラメータを追加します。
func appendParam(databaseURL, param string) string {
	if strings.Contains(databaseURL, "?") {
		return databaseURL + "&" + param
	}
	return databaseURL + "?" + param
}
