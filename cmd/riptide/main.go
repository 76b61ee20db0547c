// riptide はフロー遷移グラフの検証・出力・マイグレーションを行う CLI です。
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	logger "riptide/pkg/batch/util/logger"
)

// Version is set at build time.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "riptide",
		Usage:   "バッチフロー定義のビルド・検証ツール",
		Version: Version,
		Description: `riptide は JSL (YAML) で記述されたバッチフロー定義を検証し、
直列化されたグラフ定義の出力やフローカタログのマイグレーションを行います。

Examples:
  riptide validate flows/pipeline.yaml
  riptide graph flows/pipeline.yaml --job daily-pipeline --format json
  riptide migrate --config config.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "ログレベル (DEBUG, INFO, WARN, ERROR)",
				Value:   "INFO",
				EnvVars: []string{"RIPTIDE_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLogLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			validateCommand,
			graphCommand,
			migrateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
