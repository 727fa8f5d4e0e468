package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
	"github.com/gomind-contrib/llmgateway/internal/provider"
	"github.com/gomind-contrib/llmgateway/internal/telemetry"
)

// Resolver is the same narrow provider-resolution surface the chain
// executor depends on, so both cores share one abstraction (spec.md §4.2).
type Resolver interface {
	Resolve(ctx context.Context, modelID string) (provider.LlmProvider, string, error)
}

// KnowledgeBaseSearcher is the collaborator a KnowledgeBaseSearch step
// invokes. The engine never knows about a concrete backend.
type KnowledgeBaseSearcher interface {
	Search(ctx context.Context, knowledgeBaseID, query string) (documents []json.RawMessage, total int, err error)
}

// CragScorer is the collaborator a CragScoring step invokes.
type CragScorer interface {
	Score(ctx context.Context, documents []json.RawMessage, query string, threshold float64, strategy string) (correct, ambiguous, incorrect []json.RawMessage, err error)
}

// PromptStore is the narrow read surface a ChatCompletion step needs to
// resolve a prompt_id into its stored Prompt.
type PromptStore interface {
	GetPrompt(ctx context.Context, id string) (*domain.Prompt, error)
}

const defaultMaxSteps = 100

// Engine executes Workflows. Step-kind collaborators are held by
// reference, mirroring the teacher's pattern of injecting
// core.Discovery/core.AIClient into WorkflowEngine.
type Engine struct {
	resolver  Resolver
	kb        KnowledgeBaseSearcher
	scorer    CragScorer
	prompts   PromptStore
	maxSteps  int
	logger    logging.Logger
	telemetry telemetry.Telemetry
}

func NewEngine(resolver Resolver, kb KnowledgeBaseSearcher, scorer CragScorer, logger logging.Logger, tel telemetry.Telemetry) *Engine {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if tel == nil {
		tel = telemetry.NoOp{}
	}
	return &Engine{resolver: resolver, kb: kb, scorer: scorer, maxSteps: defaultMaxSteps, logger: logger.WithComponent("workflow.engine"), telemetry: tel}
}

// WithMaxSteps overrides the safety-stop step budget (default 100).
func (e *Engine) WithMaxSteps(n int) *Engine {
	e.maxSteps = n
	return e
}

// WithPrompts enables prompt_id resolution for ChatCompletion steps.
// Without it, a step naming a prompt_id fails rather than silently
// falling back to its inline system/user text.
func (e *Engine) WithPrompts(store PromptStore) *Engine {
	e.prompts = store
	return e
}

// Execute runs wf against input. It fails fast with an error only for the
// disabled/empty pre-conditions; otherwise it always returns a
// WorkflowResult summarizing what happened.
func (e *Engine) Execute(ctx context.Context, wf *domain.Workflow, input json.RawMessage) (*domain.WorkflowResult, error) {
	if !wf.Enabled {
		return nil, domain.NewValidationError("workflow.execute", "workflow is disabled: "+wf.ID)
	}
	if len(wf.Steps) == 0 {
		return nil, domain.NewValidationError("workflow.execute", "workflow has no steps: "+wf.ID)
	}

	ctx, span := e.telemetry.StartSpan(ctx, "workflow.execute")
	defer span.End()
	span.SetAttribute("workflow_id", wf.ID)

	byName := make(map[string]int, len(wf.Steps))
	for i, s := range wf.Steps {
		byName[s.Name] = i
	}

	wctx := NewContext(input)
	result := &domain.WorkflowResult{StepResults: make([]domain.WorkflowStepResult, 0, len(wf.Steps))}
	start := time.Now()

	var lastOutput json.RawMessage
	idx := 0
	ran := 0

	for idx < len(wf.Steps) {
		if ran >= e.maxSteps {
			// Safety stop: end successfully with the last successful
			// step's output, per spec.md §4.2's documented choice.
			result.Success = true
			result.Output = orNull(lastOutput)
			result.TotalLatencyMs = time.Since(start).Milliseconds()
			return result, nil
		}
		ran++
		step := wf.Steps[idx]
		stepStart := time.Now()

		output, action, err := e.executeStep(ctx, step, wctx)
		latency := time.Since(stepStart).Milliseconds()

		if err != nil {
			result.StepResults = append(result.StepResults, domain.WorkflowStepResult{
				StepName: step.Name, Success: false, Error: err.Error(), LatencyMs: latency,
			})
			switch step.OnError {
			case domain.OnErrorFailWorkflow:
				result.Success = false
				result.Error = fmt.Sprintf("step %q failed: %s", step.Name, err.Error())
				result.Output = orNull(lastOutput)
				result.TotalLatencyMs = time.Since(start).Milliseconds()
				return result, nil
			case domain.OnErrorSkipStep:
				idx++
				continue
			default:
				result.Success = false
				result.Error = fmt.Sprintf("step %q: unrecognized on_error policy", step.Name)
				result.TotalLatencyMs = time.Since(start).Milliseconds()
				return result, nil
			}
		}

		result.StepResults = append(result.StepResults, domain.WorkflowStepResult{
			StepName: step.Name, Success: true, Output: output, LatencyMs: latency,
		})

		if step.Kind.Kind != domain.StepKindConditional {
			wctx.RecordStep(step.Name, output)
			lastOutput = output
			idx++
			continue
		}

		// Conditional: control-flow effect takes precedence over data flow.
		switch action.Kind {
		case domain.ActionContinue:
			idx++
		case domain.ActionGoToStep:
			target, ok := byName[action.Target]
			if !ok {
				result.Success = false
				result.Error = "step_not_found: " + action.Target
				result.Output = orNull(lastOutput)
				result.TotalLatencyMs = time.Since(start).Milliseconds()
				return result, nil
			}
			idx = target
		case domain.ActionEndWorkflow:
			result.Success = true
			result.Output = orNull(action.Output)
			result.TotalLatencyMs = time.Since(start).Milliseconds()
			return result, nil
		default:
			idx++
		}
	}

	result.Success = true
	result.Output = orNull(lastOutput)
	result.TotalLatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

func orNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}

// executeStep dispatches on the step's fixed kind. The executor switches
// exhaustively; no ad-hoc kinds may be added.
func (e *Engine) executeStep(ctx context.Context, step domain.WorkflowStep, wctx *Context) (json.RawMessage, domain.ConditionalAction, error) {
	switch step.Kind.Kind {
	case domain.StepKindChatCompletion:
		out, err := e.executeChatCompletion(ctx, step.Kind.ChatCompletion, wctx)
		return out, domain.ConditionalAction{}, err
	case domain.StepKindKnowledgeBaseSearch:
		out, err := e.executeKnowledgeBaseSearch(ctx, step.Kind.KnowledgeBaseSearch, wctx)
		return out, domain.ConditionalAction{}, err
	case domain.StepKindCragScoring:
		out, err := e.executeCragScoring(ctx, step.Kind.CragScoring, wctx)
		return out, domain.ConditionalAction{}, err
	case domain.StepKindConditional:
		return e.executeConditional(step.Kind.Conditional, wctx)
	default:
		return nil, domain.ConditionalAction{}, domain.NewValidationError("workflow.execute_step", "unrecognized step kind")
	}
}

func (e *Engine) executeChatCompletion(ctx context.Context, spec *domain.ChatCompletionSpec, wctx *Context) (json.RawMessage, error) {
	system, err := wctx.ResolveString(spec.System)
	if err != nil {
		return nil, err
	}

	userTemplate := spec.User
	if spec.PromptID != "" {
		if e.prompts == nil {
			return nil, domain.NewInternalError("workflow.chat_completion", "no prompt store configured for prompt_id "+spec.PromptID, nil)
		}
		prompt, err := e.prompts.GetPrompt(ctx, spec.PromptID)
		if err != nil {
			return nil, err
		}
		userTemplate = prompt.Template
	}
	user, err := wctx.ResolveString(userTemplate)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if system != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Text: system})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Text: user})

	p, providerModel, err := e.resolver.Resolve(ctx, spec.ModelID)
	if err != nil {
		return nil, err
	}
	resp, err := p.Chat(ctx, providerModel, domain.ChatRequest{
		Messages: messages, Temperature: spec.Temperature, MaxTokens: spec.MaxTokens, TopP: spec.TopP,
	})
	if err != nil {
		return nil, err
	}

	// If the provider's text parses as JSON, the step output is that JSON;
	// otherwise it is {content, model, finish_reason}.
	trimmed := strings.TrimSpace(resp.Message.Text)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var probe json.RawMessage
		if json.Unmarshal([]byte(trimmed), &probe) == nil {
			return probe, nil
		}
	}
	return json.Marshal(map[string]interface{}{
		"content":       resp.Message.Text,
		"model":         resp.Model,
		"finish_reason": resp.FinishReason,
	})
}

func (e *Engine) executeKnowledgeBaseSearch(ctx context.Context, spec *domain.KnowledgeBaseSearchSpec, wctx *Context) (json.RawMessage, error) {
	query, err := wctx.ResolveString(spec.Query)
	if err != nil {
		return nil, err
	}
	if e.kb == nil {
		return nil, domain.NewInternalError("workflow.knowledge_base_search", "no knowledge-base collaborator configured", nil)
	}
	docs, total, err := e.kb.Search(ctx, spec.KnowledgeBaseID, query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{"documents": docs, "total": total})
}

func (e *Engine) executeCragScoring(ctx context.Context, spec *domain.CragScoringSpec, wctx *Context) (json.RawMessage, error) {
	refResolved, err := wctx.ResolveString(spec.InputDocumentsRef)
	if err != nil {
		return nil, err
	}
	var docs []json.RawMessage
	if err := json.Unmarshal([]byte(refResolved), &docs); err != nil {
		return nil, domain.NewValidationError("workflow.crag_scoring", "input_documents_ref did not resolve to a JSON array")
	}
	query, err := wctx.ResolveString(spec.Query)
	if err != nil {
		return nil, err
	}
	if e.scorer == nil {
		return nil, domain.NewInternalError("workflow.crag_scoring", "no scorer collaborator configured", nil)
	}
	correct, ambiguous, incorrect, err := e.scorer.Score(ctx, docs, query, spec.Threshold, spec.Strategy)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"correct_documents":   correct,
		"ambiguous_documents": ambiguous,
		"incorrect_documents": incorrect,
		"correct_count":       len(correct),
	})
}

func (e *Engine) executeConditional(spec *domain.ConditionalSpec, wctx *Context) (json.RawMessage, domain.ConditionalAction, error) {
	for _, cond := range spec.Conditions {
		matched, err := evaluateCondition(cond, wctx)
		if err != nil {
			return nil, domain.ConditionalAction{}, err
		}
		if matched {
			out, _ := json.Marshal(map[string]interface{}{"matched": true, "action": cond.Action.Kind})
			return out, cond.Action, nil
		}
	}
	out, _ := json.Marshal(map[string]interface{}{"matched": false, "action": spec.DefaultAction.Kind})
	return out, spec.DefaultAction, nil
}

func evaluateCondition(cond domain.Condition, wctx *Context) (bool, error) {
	fieldVal, err := wctx.ResolveString("${" + cond.Field + "}")
	if err != nil {
		// A field that resolves via request/step path missing with no
		// default: treat as empty for is_empty/is_not_empty, else fail.
		if domain.IsNotFound(err) && (cond.Operator == domain.OpIsEmpty || cond.Operator == domain.OpIsNotEmpty) {
			fieldVal = ""
		} else {
			return false, err
		}
	}
	var want string
	if len(cond.Value) > 0 {
		var raw interface{}
		if json.Unmarshal(cond.Value, &raw) == nil {
			want, _ = stringifyValue(raw)
		}
	}
	switch cond.Operator {
	case domain.OpEquals:
		return fieldVal == want, nil
	case domain.OpNotEquals:
		return fieldVal != want, nil
	case domain.OpContains:
		return strings.Contains(fieldVal, want), nil
	case domain.OpGreaterThan:
		return compareNumeric(fieldVal, want, func(a, b float64) bool { return a > b }), nil
	case domain.OpLessThan:
		return compareNumeric(fieldVal, want, func(a, b float64) bool { return a < b }), nil
	case domain.OpIsEmpty:
		return fieldVal == "", nil
	case domain.OpIsNotEmpty:
		return fieldVal != "", nil
	default:
		return false, domain.NewValidationError("workflow.evaluate_condition", "unrecognized operator")
	}
}

func compareNumeric(a, b string, cmp func(x, y float64) bool) bool {
	var af, bf float64
	if _, err := fmt.Sscanf(a, "%g", &af); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(b, "%g", &bf); err != nil {
		return false
	}
	return cmp(af, bf)
}
