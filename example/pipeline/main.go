package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"riptide/example/pipeline/app"
	"riptide/pkg/batch/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte // application.yaml の内容をバイトスライスとして埋め込む

//go:embed resources/job.yaml
var embeddedJSL []byte // JSL YAML ファイルを埋め込む

func main() {
	// Context の設定 (キャンセル可能にする)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング (Ctrl+C などで安全に終了するため)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("シグナル '%v' を受信したよ。ジョブの停止を試みる...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	// アプリケーションのメインロジックを app パッケージに委譲
	exitCode := app.RunApplication(ctx, envFilePath, embeddedConfig, embeddedJSL)
	os.Exit(exitCode)
}
