package jsl_test

import (
	"testing"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	jsl "riptide/pkg/batch/job/jsl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExportDefinition_Steps(t *testing.T) {
	job := parseJob(t, `
id: pipeline
name: Pipeline
flow:
  start-element: extract
  elements:
    extract:
      id: extract
      tasklet:
        ref: extract
      transitions:
        - on: COMPLETED
          to: load
        - on: "*"
          fail: true
    load:
      id: load
      tasklet:
        ref: load
      transitions:
        - on: COMPLETED
          end: true
        - on: "*"
          fail: true
`)

	graph, err := jsl.ConvertJSLToGraph(job, jsl.StructuralRegistry(job), nil)
	require.NoError(t, err)

	exported, err := jsl.ExportDefinition(graph.Export())
	require.NoError(t, err)

	assert.Equal(t, "pipeline", exported.ID)
	assert.Equal(t, "extract", exported.Flow.StartElement)

	// 終端擬似状態は要素ではなく遷移フラグとして出力される
	require.Len(t, exported.Flow.Elements, 2)
	extractStep, ok := exported.Flow.Elements["extract"].(jsl.Step)
	require.True(t, ok)
	assert.Equal(t, "extract", extractStep.Tasklet.Ref)
	require.Len(t, extractStep.Transitions, 2)
	assert.Equal(t, "load", extractStep.Transitions[0].To)
	assert.True(t, extractStep.Transitions[1].Fail)

	loadStep, ok := exported.Flow.Elements["load"].(jsl.Step)
	require.True(t, ok)
	assert.True(t, loadStep.Transitions[0].End)
}

// エクスポートした JSL を YAML 経由で再変換しても、同じ構造のグラフに戻る。
func TestExportDefinition_RoundTripThroughYAML(t *testing.T) {
	job := parseJob(t, `
id: nested-pipeline
name: Nested Pipeline
flow:
  start-element: check
  elements:
    check:
      id: check
      decider:
        ref: check
      transitions:
        - on: PROCEED
          to: fanout
        - on: "*"
          end: true
    fanout:
      id: fanout
      branches:
        - start-element: left
          elements:
            left:
              id: left
              tasklet:
                ref: left
        - start-element: right
          elements:
            right:
              id: right
              tasklet:
                ref: right
      transitions:
        - on: COMPLETED
          to: wrapup
        - on: "*"
          fail: true
    wrapup:
      id: wrapup
      flow:
        start-element: archive
        elements:
          archive:
            id: archive
            tasklet:
              ref: archive
      transitions:
        - on: COMPLETED
          end: true
        - on: "*"
          fail: true
`)

	graph, err := jsl.ConvertJSLToGraph(job, jsl.StructuralRegistry(job), nil)
	require.NoError(t, err)

	exported, err := jsl.ExportDefinition(graph.Export())
	require.NoError(t, err)

	// YAML を経由して再ロードする
	yamlBytes, err := yaml.Marshal(exported)
	require.NoError(t, err)
	var reloaded jsl.Job
	require.NoError(t, yaml.Unmarshal(yamlBytes, &reloaded))

	regraph, err := jsl.ConvertJSLToGraph(reloaded, jsl.StructuralRegistry(reloaded), nil)
	require.NoError(t, err)

	// 終端擬似状態の自動命名も含めて構造的に等価
	assert.True(t, flow.Equal(graph, regraph))

	// 遷移の解決が元のグラフと一致する
	target, err := regraph.Resolve("check", core.ExitStatus("PROCEED"))
	require.NoError(t, err)
	assert.Equal(t, "fanout", target)

	target, err = regraph.Resolve("fanout", core.ExitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "wrapup", target)

	state, ok := regraph.State("fanout")
	require.True(t, ok)
	splitState, ok := state.(*flow.SplitState)
	require.True(t, ok)
	assert.Len(t, splitState.Branches(), 2)
}
