package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// ConfigLoader は設定の読み込みを抽象化するインタフェースです。
type ConfigLoader interface {
	Load() (*Config, error)
}

// BytesConfigLoader は埋め込みのバイト列から設定を読み込むローダーです。
type BytesConfigLoader struct {
	ConfigBytes []byte
}

// NewBytesConfigLoader は BytesConfigLoader の新しいインスタンスを返します。
func NewBytesConfigLoader(configBytes []byte) *BytesConfigLoader {
	return &BytesConfigLoader{ConfigBytes: configBytes}
}

// Load は埋め込み設定を読み込み、環境変数による上書きを適用して返します。
func (l *BytesConfigLoader) Load() (*Config, error) {
	// .env ファイルがあれば環境変数として読み込むよ (なくてもエラーにしない)
	if err := godotenv.Load(); err != nil {
		logger.Debugf(".env ファイルが見つからなかったのでスキップするよ: %v", err)
	}

	cfg := NewConfig()

	if len(l.ConfigBytes) > 0 {
		if err := yaml.Unmarshal(l.ConfigBytes, cfg); err != nil {
			return nil, exception.NewBatchError("config", "設定ファイルのパースに失敗しました", err, false, false)
		}
	}

	l.applyEnvOverrides(cfg)

	logger.Debugf("設定の読み込みが完了したよ (database.type: '%s', log level: '%s')",
		cfg.Database.Type, cfg.System.Logging.Level)
	return cfg, nil
}

// applyEnvOverrides は環境変数が設定されていれば設定値を上書きします。
func (l *BytesConfigLoader) applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RIPTIDE_DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("RIPTIDE_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RIPTIDE_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		} else {
			logger.Warnf("環境変数 RIPTIDE_DATABASE_PORT の値 '%s' が不正なので無視するよ", v)
		}
	}
	if v := os.Getenv("RIPTIDE_DATABASE_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("RIPTIDE_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RIPTIDE_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RIPTIDE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RIPTIDE_SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Database.Account = v
	}
	if v := os.Getenv("RIPTIDE_JOB_NAME"); v != "" {
		cfg.Batch.JobName = v
	}
	if v := os.Getenv("RIPTIDE_LOG_LEVEL"); v != "" {
		cfg.System.Logging.Level = v
	}
}

// LoadConfig は埋め込み設定から Config を組み立てるヘルパーです。
func LoadConfig(embedded []byte) (*Config, error) {
	cfg, err := NewBytesConfigLoader(embedded).Load()
	if err != nil {
		return nil, err
	}
	cfg.EmbeddedConfig = embedded
	return cfg, nil
}
