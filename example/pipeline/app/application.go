package app

import (
	"context"
	"errors"
	"time"

	godotenv "github.com/joho/godotenv"

	appTasklet "riptide/example/pipeline/step/tasklet"
	config "riptide/pkg/batch/config"
	initializer "riptide/pkg/batch/initializer"
	core "riptide/pkg/batch/job/core"
	factory "riptide/pkg/batch/job/factory"
	joblauncher "riptide/pkg/batch/job/joblauncher"
	logger "riptide/pkg/batch/util/logger"
)

// registerApplicationComponents はアプリケーション固有のコンポーネントを JobFactory に登録します。
func registerApplicationComponents(jobFactory *factory.JobFactory) {
	jobFactory.RegisterComponentBuilder("extractTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return appTasklet.NewExtractTasklet(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("transformTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return appTasklet.NewTransformTasklet(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("loadTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return appTasklet.NewLoadTasklet(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("notifyTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return appTasklet.NewNotifyTasklet(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("auditTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return appTasklet.NewNotifyTasklet(cfg, map[string]string{"channel": "audit"})
	})
}

// RunApplication はアプリケーションのメインロジックを実行し、終了コードを返します。
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte) int {
	// .env ファイルのロード (存在しない場合は無視)
	if err := godotenv.Load(envFilePath); err != nil {
		logger.Debugf(".env ファイル '%s' はロードされなかったよ: %v", envFilePath, err)
	}

	cfg, err := config.LoadConfig(embeddedConfig)
	if err != nil {
		logger.Fatalf("設定のロードに失敗したよ: %v", err)
		return 1
	}

	// 初期化 (マイグレーション、フローカタログ、JSL ロード、JobFactory)
	batchInitializer := initializer.NewBatchInitializer(cfg)
	batchInitializer.JSLDefinitionBytes = embeddedJSL
	jobFactory, err := batchInitializer.Initialize(ctx)
	if err != nil {
		logger.Fatalf("バッチアプリケーションの初期化に失敗したよ: %v", err)
		return 1
	}
	defer batchInitializer.Close()

	registerApplicationComponents(jobFactory)

	// フローカタログへの同期が有効ならフロー定義を保存する
	if batchInitializer.Config.Batch.SyncFlowStore && batchInitializer.FlowStore != nil {
		if err := batchInitializer.SyncFlowStore(ctx); err != nil {
			logger.Errorf("フローカタログへの同期に失敗したよ: %v", err)
			return 1
		}
	}

	jobName := batchInitializer.Config.Batch.JobName
	job, err := jobFactory.CreateJob(jobName)
	if err != nil {
		logger.Fatalf("Job '%s' の作成に失敗したよ: %v", jobName, err)
		return 1
	}

	params := core.NewJobParameters()
	params.Put("run.date", time.Now().Format("2006-01-02"))

	launcher := joblauncher.NewSimpleJobLauncher()
	jobExecution, err := launcher.Launch(ctx, job, params)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warnf("Job '%s' は停止要求により中断されたよ。", jobName)
			return 130
		}
		logger.Errorf("Job '%s' の実行に失敗したよ: %v", jobName, err)
		return 1
	}

	if jobExecution.Status != core.BatchStatusCompleted {
		logger.Errorf("Job '%s' が正常に完了しなかったよ (Status: %s)。", jobName, jobExecution.Status)
		return 1
	}
	logger.Infof("Job '%s' が正常に完了したよ (ExitStatus: %s)。", jobName, jobExecution.ExitStatus)
	return 0
}
