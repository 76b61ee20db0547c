package factory_test

import (
	"context"
	"testing"

	config "riptide/pkg/batch/config"
	core "riptide/pkg/batch/job/core"
	factory "riptide/pkg/batch/job/factory"
	jsl "riptide/pkg/batch/job/jsl"
	step "riptide/pkg/batch/step"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factoryJobYAML = `
id: factory-job
name: Factory Job
flow:
  start-element: fetch
  elements:
    fetch:
      id: fetch
      tasklet:
        ref: fetchTasklet
        properties:
          source: sample-api
          record_count: "5"
      transitions:
        - on: COMPLETED
          end: true
        - on: "*"
          fail: true
`

func loadFactoryJob(t *testing.T) {
	t.Helper()
	jsl.ResetLoadedJobDefinitions()
	t.Cleanup(jsl.ResetLoadedJobDefinitions)
	require.NoError(t, jsl.LoadJSLDefinitionFromBytes([]byte(factoryJobYAML)))
}

func TestJobFactory_BuildGraph(t *testing.T) {
	loadFactoryJob(t)

	var receivedProps map[string]string
	f := factory.NewJobFactory(config.NewConfig())
	f.RegisterComponentBuilder("fetchTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		receivedProps = properties
		return step.TaskletFunc(func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
			return core.ExitStatusCompleted, nil
		}), nil
	})

	graph, err := f.BuildGraph("factory-job")
	require.NoError(t, err)
	assert.Equal(t, "fetch", graph.StartState().Name())

	// JSL のコンポーネントプロパティがビルダーに渡される
	require.NotNil(t, receivedProps)
	assert.Equal(t, "sample-api", receivedProps["source"])
	assert.Equal(t, "5", receivedProps["record_count"])
}

func TestJobFactory_BuildGraphMissingComponent(t *testing.T) {
	loadFactoryJob(t)

	f := factory.NewJobFactory(config.NewConfig())
	// fetchTasklet のビルダーを登録しない

	_, err := f.BuildGraph("factory-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetchTasklet")
}

func TestJobFactory_CreateJob(t *testing.T) {
	loadFactoryJob(t)

	f := factory.NewJobFactory(config.NewConfig())
	f.RegisterComponentBuilder("fetchTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return step.TaskletFunc(func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
			return core.ExitStatusCompleted, nil
		}), nil
	})

	job, err := f.CreateJob("factory-job")
	require.NoError(t, err)
	assert.Equal(t, "Factory Job", job.JobName())

	jobExecution := core.NewJobExecution(job.JobName(), core.NewJobParameters())
	require.NoError(t, job.Run(context.Background(), jobExecution, jobExecution.Parameters))
	assert.Equal(t, core.BatchStatusCompleted, jobExecution.Status)
}

func TestJobFactory_CreateJobUnknownName(t *testing.T) {
	loadFactoryJob(t)

	f := factory.NewJobFactory(config.NewConfig())
	_, err := f.CreateJob("ghost-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost-job")
}
