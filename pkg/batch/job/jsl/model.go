package jsl

// Job represents the top-level structure of a JSL file.
type Job struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Flow        Flow   `yaml:"flow"` // A job must have a flow
}

// Flow represents a sequence of steps, decisions, splits and sub-flows.
type Flow struct {
	StartElement string                 `yaml:"start-element"` // The ID of the first element to execute
	Elements     map[string]interface{} `yaml:"elements"`      // Map of element ID to its definition
}

// Step represents a single tasklet-oriented processing unit within a job.
type Step struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description,omitempty"`
	Tasklet     ComponentRef `yaml:"tasklet"`
	Transitions []Transition `yaml:"transitions,omitempty"`
}

// ComponentRef refers to a registered component (tasklet, decider).
type ComponentRef struct {
	Ref        string            `yaml:"ref"` // The name/ID of the component (e.g., "extractTasklet")
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Decision represents a conditional branching point in the flow.
// Decider が指定されていればそのコンポーネントに、なければ properties を使った
// ConditionalDecision に判定を委譲します。
type Decision struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description,omitempty"`
	Decider     ComponentRef      `yaml:"decider,omitempty"`
	Properties  map[string]string `yaml:"properties,omitempty"`
	Transitions []Transition      `yaml:"transitions"`
}

// Split represents parallel branches that join before transitioning.
type Split struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description,omitempty"`
	Branches    []Flow       `yaml:"branches"`
	// Aggregation は分岐ステータスの集約ポリシー名 (現状 "any-fail-wins" のみ)
	Aggregation    string       `yaml:"aggregation,omitempty"`
	CancelSiblings bool         `yaml:"cancel-siblings,omitempty"`
	Transitions    []Transition `yaml:"transitions,omitempty"`
}

// SubFlow represents a nested flow executed as a single element.
type SubFlow struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description,omitempty"`
	Flow        Flow         `yaml:"flow"`
	Transitions []Transition `yaml:"transitions,omitempty"`
}

// Transition defines the next element to execute based on an exit status.
// The On field accepts wildcard patterns: '*' matches any run of characters
// and '?' matches exactly one character.
type Transition struct {
	On   string `yaml:"on"`             // The exit status pattern (e.g., "COMPLETED", "FAILED", "C*")
	To   string `yaml:"to,omitempty"`   // The ID of the next element
	End  bool   `yaml:"end,omitempty"`  // If true, ends the job execution
	Fail bool   `yaml:"fail,omitempty"` // If true, fails the job execution
	Stop bool   `yaml:"stop,omitempty"` // If true, stops the job execution
}
