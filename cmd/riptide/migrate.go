package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	config "riptide/pkg/batch/config"
	database "riptide/pkg/batch/database"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "フローカタログのデータベースマイグレーションを実行する",
	Description: `設定ファイルの database セクションに基づいてフローカタログ用の
テーブルを作成・更新します。接続設定は環境変数 (RIPTIDE_DATABASE_*) でも
上書きできます。`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "設定ファイル (YAML) のパス",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "マイグレーションファイルのディレクトリ (設定の migration_path を上書き)",
		},
	},
	Action: func(c *cli.Context) error {
		var configBytes []byte
		if path := c.String("config"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました: %w", path, err)
			}
			configBytes = data
		}

		cfg, err := config.LoadConfig(configBytes)
		if err != nil {
			return fmt.Errorf("設定のロードに失敗しました: %w", err)
		}

		if cfg.Database.Type == "" {
			return fmt.Errorf("database.type が設定されていません")
		}

		migrationPath := cfg.Database.MigrationPath
		if path := c.String("path"); path != "" {
			migrationPath = path
		}
		if migrationPath == "" {
			return fmt.Errorf("マイグレーションパスが設定されていません (--path または database.migration_path)")
		}

		return database.RunMigrations(cfg.Database.Type, cfg.Database.ConnectionString(), migrationPath)
	},
}
