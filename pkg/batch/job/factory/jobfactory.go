package factory

import (
	"fmt"

	"github.com/google/uuid"

	config "riptide/pkg/batch/config"
	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	jsl "riptide/pkg/batch/job/jsl"
	jobListener "riptide/pkg/batch/job/listener"
	runner "riptide/pkg/batch/job/runner"
	stepListener "riptide/pkg/batch/step/listener"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// ComponentBuilder は、特定のコンポーネント (Tasklet, Decider) を生成するための関数型です。
// Config を受け取り、生成されたコンポーネントとエラーを返します。
// ジェネリックインターフェースを返すため、any を使用します。
type ComponentBuilder func(cfg *config.Config, properties map[string]string) (any, error)

// JobFactory は Job オブジェクトを生成するためのファクトリです。
// JSL 定義とコンポーネントビルダーから実行可能な core.Job を組み立てます。
type JobFactory struct {
	config            *config.Config
	componentBuilders map[string]ComponentBuilder
}

// NewJobFactory は新しい JobFactory のインスタンスを作成します。
// コンポーネントビルダーは呼び出し側が RegisterComponentBuilder で登録します。
func NewJobFactory(cfg *config.Config) *JobFactory {
	return &JobFactory{
		config:            cfg,
		componentBuilders: make(map[string]ComponentBuilder),
	}
}

// RegisterComponentBuilder はコンポーネントのビルド関数を登録します。
func (f *JobFactory) RegisterComponentBuilder(name string, builder ComponentBuilder) {
	f.componentBuilders[name] = builder
	logger.Debugf("コンポーネントビルダー '%s' を登録したよ。", name)
}

// BuildGraph は指定されたジョブ名の JSL 定義からフローグラフを構築します。
// コンポーネントのインスタンス化とグラフの検証までを行います。
func (f *JobFactory) BuildGraph(jobName string) (*flow.Graph, error) {
	// 1. JSL 定義からジョブをロード
	jslJob, ok := jsl.GetJobDefinition(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "指定された Job '%s' のJSL定義が見つかりません", jobName)
	}

	// 2. 登録されたビルド関数を使用してコンポーネントをインスタンス化し、レジストリに登録
	componentRegistry := make(map[string]any)
	for componentRefName, builder := range f.componentBuilders {
		instance, err := builder(f.config, componentProperties(jslJob, componentRefName))
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("コンポーネント '%s' のビルドに失敗しました", componentRefName), err, false, false)
		}
		componentRegistry[componentRefName] = instance
		logger.Debugf("コンポーネント '%s' をレジストリに登録したよ。", componentRefName)
	}

	// 3. StepExecutionListener を生成
	stepListeners := []core.StepExecutionListener{
		stepListener.NewLoggingStepListener(&f.config.System.Logging),
	}

	// 4. JSL Flow を flow.Graph に変換
	graph, err := jsl.ConvertJSLToGraph(jslJob, componentRegistry, stepListeners)
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("JSL ジョブ '%s' のフロー変換に失敗しました", jobName), err, false, false)
	}

	// 5. グラフの検証。構造エラーは失敗、到達不能状態は警告のみ。
	warnings, err := graph.Validate()
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("JSL ジョブ '%s' のグラフ検証に失敗しました", jobName), err, false, false)
	}
	for _, w := range warnings {
		logger.Warnf("ジョブ '%s' のグラフ検証で警告が出たよ: %s", jobName, w)
	}
	return graph, nil
}

// CreateJob は指定されたジョブ名の core.Job オブジェクトを作成します。
// JSL 定義からジョブを構築するロジックをここに集約します。
func (f *JobFactory) CreateJob(jobName string) (core.Job, error) {
	logger.Debugf("JobFactory で Job '%s' の作成を試みるよ。", jobName)

	jslJob, ok := jsl.GetJobDefinition(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "指定された Job '%s' のJSL定義が見つかりません", jobName)
	}

	graph, err := f.BuildGraph(jobName)
	if err != nil {
		return nil, err
	}

	// JobExecutionListener を生成し、ジョブに登録
	jobListeners := []core.JobExecutionListener{
		jobListener.NewLoggingJobListener(&f.config.System.Logging),
	}

	job := runner.NewFlowJob(uuid.New().String(), jslJob.Name, graph, jobListeners)
	logger.Debugf("Job '%s' を JSL 定義から構築したよ。", jobName)
	return job, nil
}

// componentProperties は JSL 定義からコンポーネント参照のプロパティを探します。
// 同じコンポーネントが複数箇所から参照される場合は最初に見つかったものを返します。
func componentProperties(jslJob jsl.Job, componentRefName string) map[string]string {
	return flowComponentProperties(jslJob.Flow, componentRefName)
}

func flowComponentProperties(f jsl.Flow, componentRefName string) map[string]string {
	for _, elem := range f.Elements {
		m, ok := elem.(map[string]interface{})
		if !ok {
			continue
		}
		if props := refProperties(m, "tasklet", componentRefName); props != nil {
			return props
		}
		if props := refProperties(m, "decider", componentRefName); props != nil {
			return props
		}
		// サブフローと Split の分岐も探索する
		if sub, ok := m["flow"].(map[string]interface{}); ok {
			if props := flowComponentProperties(flowFromRaw(sub), componentRefName); props != nil {
				return props
			}
		}
		if branches, ok := m["branches"].([]interface{}); ok {
			for _, rawBranch := range branches {
				branch, ok := rawBranch.(map[string]interface{})
				if !ok {
					continue
				}
				if props := flowComponentProperties(flowFromRaw(branch), componentRefName); props != nil {
					return props
				}
			}
		}
	}
	return nil
}

// flowFromRaw は YAML デコード結果の生マップを jsl.Flow に詰め替えます。
func flowFromRaw(raw map[string]interface{}) jsl.Flow {
	f := jsl.Flow{}
	if start, ok := raw["start-element"].(string); ok {
		f.StartElement = start
	}
	if elements, ok := raw["elements"].(map[string]interface{}); ok {
		f.Elements = make(map[string]interface{}, len(elements))
		for k, v := range elements {
			f.Elements[k] = v
		}
	}
	return f
}

// refProperties は要素マップ内のコンポーネント参照からプロパティを取り出します。
func refProperties(elem map[string]interface{}, key, componentRefName string) map[string]string {
	ref, ok := elem[key].(map[string]interface{})
	if !ok {
		return nil
	}
	if name, _ := ref["ref"].(string); name != componentRefName {
		return nil
	}
	rawProps, ok := ref["properties"].(map[string]interface{})
	if !ok {
		return map[string]string{}
	}
	props := make(map[string]string, len(rawProps))
	for k, v := range rawProps {
		props[k] = fmt.Sprintf("%v", v)
	}
	return props
}
