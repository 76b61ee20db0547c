package initializer

import (
	"context"
	"fmt"
	"time"

	config "riptide/pkg/batch/config"
	database "riptide/pkg/batch/database"
	connector "riptide/pkg/batch/database/connector"
	factory "riptide/pkg/batch/job/factory"
	jsl "riptide/pkg/batch/job/jsl"
	flowstore "riptide/pkg/batch/repository/flowstore"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// BatchInitializer はバッチアプリケーションの初期化処理を担当します。
// 設定のロード、データベースマイグレーション、フローカタログと JobFactory の
// 組み立てを一箇所に集約します。
type BatchInitializer struct {
	Config             *config.Config
	JSLDefinitionBytes []byte // JSL定義のバイトスライス
	JobFactory         *factory.JobFactory
	FlowStore          flowstore.Store
}

// NewBatchInitializer は新しい BatchInitializer のインスタンスを作成します。
func NewBatchInitializer(cfg *config.Config) *BatchInitializer {
	return &BatchInitializer{
		Config: cfg,
	}
}

// connectWithRetry は指定されたデータベースにリトライ付きで接続を試みます。
func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, delay time.Duration) (database.DBConnection, error) {
	var conn database.DBConnection
	var err error
	for i := 0; i < maxRetries; i++ {
		logger.Debugf("データベース接続を試行中 (試行 %d/%d)...", i+1, maxRetries)
		conn, err = connector.NewDBConnectionFromConfig(ctx, cfg)
		if err == nil {
			logger.Infof("データベース接続に成功したよ。")
			return conn, nil
		}
		logger.Warnf("データベース接続に失敗したよ: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("データベースへの接続に最大試行回数 (%d) 失敗しました: %w", maxRetries, err)
}

// Initialize はバッチアプリケーションの初期化処理を実行します。
// フローカタログのセットアップは database.type が設定されている場合のみ行います。
func (bi *BatchInitializer) Initialize(ctx context.Context) (*factory.JobFactory, error) {
	// Step 1: 設定のロード
	cfg, err := config.NewBytesConfigLoader(bi.Config.EmbeddedConfig).Load()
	if err != nil {
		return nil, exception.NewBatchError("initializer", "設定のロードに失敗しました", err, false, false)
	}
	cfg.EmbeddedConfig = bi.Config.EmbeddedConfig
	bi.Config = cfg

	// ロギングレベルの設定
	logger.SetLogLevel(bi.Config.System.Logging.Level)
	logger.Infof("ロギングレベルを '%s' に設定したよ。", bi.Config.System.Logging.Level)

	// Step 2: データベース接続とマイグレーション (フローカタログを使う場合のみ)
	if bi.Config.Database.Type != "" {
		dbCfg := bi.Config.Database
		if dbCfg.MigrationPath != "" {
			if err := database.RunMigrations(dbCfg.Type, dbCfg.ConnectionString(), dbCfg.MigrationPath); err != nil {
				return nil, exception.NewBatchError("initializer", "フローカタログのマイグレーションに失敗しました", err, false, false)
			}
		}

		conn, err := connectWithRetry(ctx, dbCfg, 10, 5*time.Second)
		if err != nil {
			return nil, exception.NewBatchError("initializer", "データベースへの接続に失敗しました", err, false, false)
		}
		bi.FlowStore = flowstore.NewSQLStore(conn, dbCfg.Type)
		logger.Infof("フローカタログを生成したよ (type: %s)。", dbCfg.Type)
	} else {
		logger.Debugf("database.type が未設定なのでフローカタログはスキップするよ。")
	}

	// Step 3: JSL 定義のロード
	if len(bi.JSLDefinitionBytes) > 0 {
		if err := jsl.LoadJSLDefinitionFromBytes(bi.JSLDefinitionBytes); err != nil {
			return nil, exception.NewBatchError("initializer", "JSL 定義のロードに失敗しました", err, false, false)
		}
	}
	logger.Infof("JSL 定義のロードが完了したよ。ロードされたジョブ数: %d", jsl.GetLoadedJobCount())

	// Step 4: JobFactory の生成。コンポーネントビルダーの登録は呼び出し側が行う。
	bi.JobFactory = factory.NewJobFactory(bi.Config)
	logger.Debugf("JobFactory を作成したよ。")

	return bi.JobFactory, nil
}

// SyncFlowStore はロード済みの全 JSL ジョブのフローグラフを構築し、
// フローカタログへ保存します。batch.sync_flow_store が有効な場合に呼び出します。
func (bi *BatchInitializer) SyncFlowStore(ctx context.Context) error {
	if bi.FlowStore == nil {
		return exception.NewBatchErrorf("initializer", "フローカタログが初期化されていません")
	}
	for jobID := range jsl.LoadedJobDefinitions {
		graph, err := bi.JobFactory.BuildGraph(jobID)
		if err != nil {
			return exception.NewBatchError("initializer", fmt.Sprintf("ジョブ '%s' のグラフ構築に失敗しました", jobID), err, false, false)
		}
		if err := bi.FlowStore.Save(ctx, graph); err != nil {
			return exception.NewBatchError("initializer", fmt.Sprintf("ジョブ '%s' のフロー定義の保存に失敗しました", jobID), err, true, false)
		}
		logger.Infof("ジョブ '%s' のフロー定義をカタログに同期したよ。", jobID)
	}
	return nil
}

// Close は BatchInitializer が保持するリソースを解放します。
func (bi *BatchInitializer) Close() error {
	if bi.FlowStore == nil {
		return nil
	}
	if err := bi.FlowStore.Close(); err != nil {
		logger.Errorf("フローカタログのクローズに失敗したよ: %v", err)
		return fmt.Errorf("フローカタログのクローズに失敗しました: %w", err)
	}
	logger.Debugf("フローカタログをクローズしたよ。")
	return nil
}
