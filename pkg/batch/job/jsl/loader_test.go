package jsl_test

import (
	"testing"

	jsl "riptide/pkg/batch/job/jsl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJobYAML = `
id: sample-job
name: Sample Job
flow:
  start-element: fetch
  elements:
    fetch:
      id: fetch
      tasklet:
        ref: fetchTasklet
      transitions:
        - on: COMPLETED
          end: true
        - on: "*"
          fail: true
`

func TestLoadJSLDefinitionFromBytes(t *testing.T) {
	jsl.ResetLoadedJobDefinitions()
	t.Cleanup(jsl.ResetLoadedJobDefinitions)

	require.NoError(t, jsl.LoadJSLDefinitionFromBytes([]byte(validJobYAML)))
	assert.Equal(t, 1, jsl.GetLoadedJobCount())

	job, ok := jsl.GetJobDefinition("sample-job")
	require.True(t, ok)
	assert.Equal(t, "Sample Job", job.Name)
	assert.Equal(t, "fetch", job.Flow.StartElement)
	assert.Len(t, job.Flow.Elements, 1)

	_, ok = jsl.GetJobDefinition("missing-job")
	assert.False(t, ok)
}

func TestLoadJSLDefinitionFromBytes_Validations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "Invalid YAML",
			yaml: "id: [broken",
		},
		{
			name: "Missing ID",
			yaml: `
name: No ID
flow:
  start-element: a
  elements:
    a:
      id: a
      tasklet: {ref: t}
`,
		},
		{
			name: "Missing Name",
			yaml: `
id: no-name
flow:
  start-element: a
  elements:
    a:
      id: a
      tasklet: {ref: t}
`,
		},
		{
			name: "Missing Start Element",
			yaml: `
id: no-start
name: No Start
flow:
  elements:
    a:
      id: a
      tasklet: {ref: t}
`,
		},
		{
			name: "Missing Elements",
			yaml: `
id: no-elements
name: No Elements
flow:
  start-element: a
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsl.ResetLoadedJobDefinitions()
			t.Cleanup(jsl.ResetLoadedJobDefinitions)

			err := jsl.LoadJSLDefinitionFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
			assert.Equal(t, 0, jsl.GetLoadedJobCount())
		})
	}
}

func TestLoadJSLDefinitionFromBytes_DuplicateIDRejected(t *testing.T) {
	jsl.ResetLoadedJobDefinitions()
	t.Cleanup(jsl.ResetLoadedJobDefinitions)

	require.NoError(t, jsl.LoadJSLDefinitionFromBytes([]byte(validJobYAML)))
	err := jsl.LoadJSLDefinitionFromBytes([]byte(validJobYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重複")
	assert.Equal(t, 1, jsl.GetLoadedJobCount())
}
