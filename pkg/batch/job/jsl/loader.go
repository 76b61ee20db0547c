package jsl

import (
	"embed"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// LoadedJobDefinitions holds all loaded JSL job definitions.
var LoadedJobDefinitions = make(map[string]Job)

// LoadJSLDefinitions loads all JSL YAML files embedded in the binary.
func LoadJSLDefinitions(jslFiles embed.FS, subPath string) error {
	logger.Infof("JSL 定義のロードを開始するよ。")
	files, err := jslFiles.ReadDir(subPath)
	if err != nil {
		return exception.NewBatchError("jsl_loader", "JSL ディレクトリの読み込みに失敗しました", err, false, false)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".yaml" {
			continue
		}

		filePath := filepath.Join(subPath, file.Name())
		logger.Debugf("JSL ファイルを読み込み中: %s", filePath)
		data, err := jslFiles.ReadFile(filePath)
		if err != nil {
			return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ファイル '%s' の読み込みに失敗しました", filePath), err, false, false)
		}

		if err := LoadJSLDefinitionFromBytes(data); err != nil {
			return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ファイル '%s' のロードに失敗しました", filePath), err, false, false)
		}
	}
	logger.Infof("JSL 定義のロードが完了したよ。ロードされたジョブ数: %d", len(LoadedJobDefinitions))
	return nil
}

// LoadJSLDefinitionFromBytes parses a single JSL YAML document and registers it.
func LoadJSLDefinitionFromBytes(data []byte) error {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return exception.NewBatchError("jsl_loader", "JSL のパースに失敗しました", err, false, false)
	}

	if jobDef.ID == "" {
		return exception.NewBatchError("jsl_loader", "JSL に 'id' が定義されていません", nil, false, false)
	}
	if jobDef.Name == "" {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ジョブ '%s' に 'name' が定義されていません", jobDef.ID), nil, false, false)
	}
	if jobDef.Flow.StartElement == "" {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ジョブ '%s' のフローに 'start-element' が定義されていません", jobDef.ID), nil, false, false)
	}
	if len(jobDef.Flow.Elements) == 0 {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ジョブ '%s' のフローに 'elements' が定義されていません", jobDef.ID), nil, false, false)
	}

	if _, exists := LoadedJobDefinitions[jobDef.ID]; exists {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ジョブID '%s' が重複しています", jobDef.ID), nil, false, false)
	}

	LoadedJobDefinitions[jobDef.ID] = jobDef
	logger.Infof("JSL ジョブ '%s' をロードしたよ。", jobDef.ID)
	return nil
}

// GetJobDefinition retrieves a JSL Job definition by its ID.
func GetJobDefinition(jobID string) (Job, bool) {
	job, ok := LoadedJobDefinitions[jobID]
	return job, ok
}

// GetLoadedJobCount returns the number of loaded JSL job definitions.
func GetLoadedJobCount() int {
	return len(LoadedJobDefinitions)
}

// ResetLoadedJobDefinitions clears the registry. テスト用。
func ResetLoadedJobDefinitions() {
	LoadedJobDefinitions = make(map[string]Job)
}
