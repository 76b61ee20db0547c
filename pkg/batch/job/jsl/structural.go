package jsl

import (
	"context"

	"gopkg.in/yaml.v3"

	core "riptide/pkg/batch/job/core"
	step "riptide/pkg/batch/step"
)

// StructuralRegistry builds placeholder components for every component
// reference in the job. 実際のコンポーネント実装なしでフロー構造だけを
// 検証したい場合に ConvertJSLToGraph へ渡します。
func StructuralRegistry(jslJob Job) map[string]any {
	registry := make(map[string]any)
	collectRefs(jslJob.Flow, registry)
	return registry
}

func collectRefs(f Flow, registry map[string]any) {
	for id, elem := range f.Elements {
		elemBytes, err := yaml.Marshal(elem)
		if err != nil {
			continue
		}

		var jslStep Step
		if err := yaml.Unmarshal(elemBytes, &jslStep); err == nil && jslStep.Tasklet.Ref != "" {
			registry[jslStep.Tasklet.Ref] = placeholderTasklet()
			continue
		}

		var jslSplit Split
		if err := yaml.Unmarshal(elemBytes, &jslSplit); err == nil && len(jslSplit.Branches) > 0 {
			for _, branch := range jslSplit.Branches {
				collectRefs(branch, registry)
			}
			continue
		}

		var jslSubFlow SubFlow
		if err := yaml.Unmarshal(elemBytes, &jslSubFlow); err == nil && jslSubFlow.Flow.StartElement != "" {
			collectRefs(jslSubFlow.Flow, registry)
			continue
		}

		var jslDecision Decision
		if err := yaml.Unmarshal(elemBytes, &jslDecision); err == nil && jslDecision.Decider.Ref != "" {
			// デサイダーのIDは要素IDと一致する必要がある
			registry[jslDecision.Decider.Ref] = placeholderDecision(id)
		}
	}
}

func placeholderTasklet() core.Tasklet {
	return step.TaskletFunc(func(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
		return core.ExitStatusCompleted, nil
	})
}

func placeholderDecision(id string) core.Decision {
	return &core.DecisionFunc{
		Name: id,
		Func: func(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) (core.ExitStatus, error) {
			return core.ExitStatusCompleted, nil
		},
	}
}
