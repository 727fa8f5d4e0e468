package domain

import "encoding/json"

// WorkflowStepErrorPolicy is the closed sum of per-step error handling.
type WorkflowStepErrorPolicy string

const (
	OnErrorFailWorkflow WorkflowStepErrorPolicy = "FailWorkflow"
	OnErrorSkipStep     WorkflowStepErrorPolicy = "SkipStep"
)

// WorkflowStepKindTag is the closed sum of step shapes. The executor
// switches on it exhaustively; no ad-hoc kinds may be added.
type WorkflowStepKindTag string

const (
	StepKindChatCompletion    WorkflowStepKindTag = "ChatCompletion"
	StepKindKnowledgeBaseSearch WorkflowStepKindTag = "KnowledgeBaseSearch"
	StepKindCragScoring       WorkflowStepKindTag = "CragScoring"
	StepKindConditional       WorkflowStepKindTag = "Conditional"
)

// ChatCompletionSpec is the payload of a ChatCompletion step. System/User
// hold inline template text resolved through the same ${source:path}
// grammar as the rest of the step's context; PromptID, when set, names a
// Prompt whose Template is resolved in place of User (System is still
// sent). A prompt that cannot be loaded fails the step; there is no
// fallback to the inline User text.
type ChatCompletionSpec struct {
	ModelID     string   `json:"model_id"`
	PromptID    string   `json:"prompt_id,omitempty"`
	System      string   `json:"system,omitempty"`
	User        string   `json:"user"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// KnowledgeBaseSearchSpec is the payload of a KnowledgeBaseSearch step.
type KnowledgeBaseSearchSpec struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Query           string `json:"query"`
}

// CragScoringSpec is the payload of a CragScoring step.
type CragScoringSpec struct {
	InputDocumentsRef string  `json:"input_documents_ref"`
	Query             string  `json:"query"`
	Threshold         float64 `json:"threshold"`
	Strategy          string  `json:"strategy"`
}

// ConditionOperator is the closed sum of comparison operators a condition
// may use.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
)

// ConditionalActionKind is the closed sum of control-flow actions a
// conditional branch may take.
type ConditionalActionKind string

const (
	ActionContinue    ConditionalActionKind = "Continue"
	ActionGoToStep    ConditionalActionKind = "GoToStep"
	ActionEndWorkflow ConditionalActionKind = "EndWorkflow"
)

// ConditionalAction names a control-flow effect and its payload (the target
// step name for GoToStep, the final output for EndWorkflow).
type ConditionalAction struct {
	Kind   ConditionalActionKind `json:"kind"`
	Target string                `json:"target,omitempty"` // GoToStep
	Output json.RawMessage       `json:"output,omitempty"` // EndWorkflow
}

// Condition is one clause of a Conditional step, evaluated in order.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Action   ConditionalAction `json:"action"`
}

// ConditionalSpec is the payload of a Conditional step.
type ConditionalSpec struct {
	Conditions    []Condition       `json:"conditions"`
	DefaultAction ConditionalAction `json:"default_action"`
}

// WorkflowStepKind is a tagged variant over the four fixed step shapes.
// Exactly one of the *Spec fields is populated, matching Kind.
type WorkflowStepKind struct {
	Kind                WorkflowStepKindTag      `json:"kind"`
	ChatCompletion      *ChatCompletionSpec      `json:"chat_completion,omitempty"`
	KnowledgeBaseSearch *KnowledgeBaseSearchSpec `json:"knowledge_base_search,omitempty"`
	CragScoring         *CragScoringSpec         `json:"crag_scoring,omitempty"`
	Conditional         *ConditionalSpec         `json:"conditional,omitempty"`
}

// WorkflowStep is one named node of a workflow program.
type WorkflowStep struct {
	Name    string                  `json:"name"`
	Kind    WorkflowStepKind        `json:"kind"`
	OnError WorkflowStepErrorPolicy `json:"on_error"`
}

// Workflow is a program of WorkflowSteps over a shared JSON context. Step
// names are unique within a workflow.
type Workflow struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Steps   []WorkflowStep `json:"steps"`
	Enabled bool           `json:"enabled"`
}

func (w *Workflow) Validate() error {
	if err := ValidateID("workflow", w.ID); err != nil {
		return err
	}
	if w.Name == "" {
		return NewValidationError("workflow.validate", "name must not be empty")
	}
	seen := make(map[string]bool, len(w.Steps))
	for _, s := range w.Steps {
		if s.Name == "" {
			return NewValidationError("workflow.validate", "step name must not be empty")
		}
		if seen[s.Name] {
			return NewValidationError("workflow.validate", "duplicate step name: "+s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// WorkflowStepResult records the outcome of one executed (or skipped) step.
type WorkflowStepResult struct {
	StepName  string          `json:"step_name"`
	Success   bool            `json:"success"`
	Skipped   bool            `json:"skipped,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// WorkflowResult summarizes one workflow execution. Always returned, never
// an error, except for the disabled/empty pre-conditions.
type WorkflowResult struct {
	Success        bool                  `json:"success"`
	Output         json.RawMessage       `json:"output"`
	StepResults    []WorkflowStepResult  `json:"step_results"`
	TotalLatencyMs int64                 `json:"total_latency_ms"`
	Error          string                `json:"error,omitempty"`
}
