// Package llmengine implements the decision engine on a language model
// with native tool calling.
//
// Each turn rebuilds the chat from the conversation: the system prompt,
// the goal, then for every executed turn the model's tool calls followed
// by the tool results. The model replies either with tool calls, which
// become intents, or with text only, which is the final answer.
package llmengine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/llmutils"
	"github.com/effective-security/devassist/pkg/metricskey"
	"github.com/effective-security/devassist/pkg/prompts"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "llmengine")

// ErrNoFunctionCalling is returned when the model can not call tools.
var ErrNoFunctionCalling = errors.New("the LLM does not support function calling")

// Engine is a decision engine backed by an LLM.
type Engine struct {
	cfg    Config
	model  llms.Model
	prompt *prompts.Template
}

var _ orchestrator.DecisionEngine = (*Engine)(nil)

// New returns an engine for the model.
func New(model llms.Model, opts ...Option) (*Engine, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Name = values.StringsCoalesce(cfg.Name, DefaultName)
	cfg.MaxTokens = values.NumbersCoalesce(cfg.MaxTokens, DefaultMaxTokens)
	cfg.MaxRetries = values.NumbersCoalesce(cfg.MaxRetries, DefaultMaxRetries)
	cfg.ToolChoice = values.StringsCoalesce(cfg.ToolChoice, llms.ToolChoiceAuto)

	prompt, err := prompts.NewTemplate(cfg.Name, values.StringsCoalesce(cfg.SystemPrompt, DefaultSystemPrompt))
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:    cfg,
		model:  model,
		prompt: prompt,
	}, nil
}

// Name implements orchestrator.DecisionEngine.
func (e *Engine) Name() string {
	return e.cfg.Name
}

// Model returns the LLM of the engine.
func (e *Engine) Model() llms.Model {
	return e.model
}

// SystemPrompt renders the system prompt for the conversation.
func (e *Engine) SystemPrompt(conv *orchestrator.Conversation, tools []mcp.ToolSpec) (string, error) {
	now := conv.Started
	if now.IsZero() {
		now = time.Now()
	}
	inputs := prompts.MergeInputs(e.cfg.PromptInputs, map[string]any{
		"goal":  conv.Goal,
		"tools": tools,
		"date":  now.Format(time.DateOnly),
	})
	text, err := e.prompt.Format(inputs)
	if err != nil {
		return "", errors.WithMessage(err, "failed to format system prompt")
	}
	return strings.TrimRight(text, "\n"), nil
}

// Prompt returns the chat sent to the model for the next turn.
func (e *Engine) Prompt(conv *orchestrator.Conversation, tools []mcp.ToolSpec) (prompts.ChatPromptValue, error) {
	system, err := e.SystemPrompt(conv, tools)
	if err != nil {
		return nil, err
	}
	return prompts.ChatPromptValue(Messages(system, conv)), nil
}

// Decide implements orchestrator.DecisionEngine.
func (e *Engine) Decide(ctx context.Context, conv *orchestrator.Conversation, tools []mcp.ToolSpec) (*orchestrator.Decision, error) {
	if len(tools) > 0 && !e.model.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.WithMessagef(ErrNoFunctionCalling, "engine %s", e.cfg.Name)
	}

	prompt, err := e.Prompt(conv, tools)
	if err != nil {
		return nil, err
	}
	messages := prompt.Messages()

	callOpts := []llms.CallOption{
		llms.WithMaxTokens(e.cfg.MaxTokens),
	}
	if e.cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(e.cfg.Temperature))
	}
	if len(tools) > 0 {
		callOpts = append(callOpts,
			llms.WithTools(ToolDefs(tools)),
			llms.WithToolChoice(e.cfg.ToolChoice))
	}

	name := e.cfg.Name
	modelName := e.model.GetName()
	cb := e.cfg.Callback

	for attempt := 1; ; attempt++ {
		if cb != nil {
			cb.OnLLMCallStart(ctx, conv, e.model, messages)
		}

		bytesSent := llmutils.CountMessagesContentSize(messages)
		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), name, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), name, modelName)

		resp, err := e.model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to generate content from %s", modelName)
		}

		if cb != nil {
			cb.OnLLMCallEnd(ctx, conv, e.model, resp)
		}

		bytesReceived := llmutils.CountResponseContentSize(resp)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), name, modelName)
		tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), name, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), name, modelName)
		metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), name, modelName)

		choice := firstChoice(resp)
		if choice != nil {
			return e.decision(ctx, conv, choice), nil
		}

		if attempt >= e.cfg.MaxRetries {
			logger.ContextKV(ctx, xlog.ERROR,
				"engine", name,
				"status", "max_retries_exceeded",
				"run", conv.ID,
				"retry_count", attempt,
			)
			return nil, errors.WithMessagef(llms.ErrEmptyResponse, "engine %s: after %d attempts", name, attempt)
		}
		metricskey.StatsDecisionCallsRetried.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"engine", name,
			"status", "retrying_empty_response",
			"run", conv.ID,
			"retry_count", attempt,
		)
	}
}

// decision maps the tool calls of the choice to intents.
func (e *Engine) decision(ctx context.Context, conv *orchestrator.Conversation, choice *llms.ContentChoice) *orchestrator.Decision {
	d := &orchestrator.Decision{
		Answer: strings.TrimSpace(choice.Content),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		intent := orchestrator.Intent{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
		}
		args, err := ParseArguments(tc.FunctionCall.Arguments)
		if err != nil {
			intent.ParseError = err.Error()
			metricskey.StatsLLMParseErrors.IncrCounter(1, e.cfg.Name)
			logger.ContextKV(ctx, xlog.DEBUG,
				"engine", e.cfg.Name,
				"status", "failed_to_parse_arguments",
				"run", conv.ID,
				"tool", intent.Name,
				"arguments", slices.StringUpto(tc.FunctionCall.Arguments, 128),
				"err", err.Error(),
			)
			if e.cfg.Callback != nil {
				e.cfg.Callback.OnLLMParseError(ctx, conv, tc, err)
			}
		} else {
			intent.Arguments = args
		}
		d.Intents = append(d.Intents, intent)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"engine", e.cfg.Name,
		"status", "decision",
		"run", conv.ID,
		"intents", len(d.Intents),
		"answer", slices.StringUpto(d.Answer, 64),
	)
	return d
}

// firstChoice returns the first choice with content or tool calls.
func firstChoice(resp *llms.ContentResponse) *llms.ContentChoice {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Choices {
		if c != nil && (len(c.ToolCalls) > 0 || strings.TrimSpace(c.Content) != "") {
			return c
		}
	}
	return nil
}

// ParseArguments decodes the tool call arguments produced by the model.
// Empty arguments are an empty object.
func ParseArguments(arguments string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(arguments)), &args); err != nil {
		return nil, errors.Wrap(err, "arguments are not a JSON object")
	}
	return args, nil
}

// ToolDefs returns the LLM tool definitions of the tools.
func ToolDefs(tools []mcp.ToolSpec) []llms.Tool {
	list := make([]llms.Tool, 0, len(tools))
	for i := range tools {
		spec := &tools[i]
		list = append(list, llms.FunctionTool(spec.Name, spec.Description, schema.ForTool(spec)))
	}
	return list
}

// Messages builds the chat for the conversation.
func Messages(system string, conv *orchestrator.Conversation) []llms.Message {
	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, system),
		llms.MessageFromTextParts(llms.RoleHuman, conv.Goal),
	}
	for _, turn := range conv.Turns {
		if len(turn.Steps) == 0 {
			continue
		}
		calls := make([]llms.ToolCall, 0, len(turn.Steps))
		responses := make([]llms.ToolCallResponse, 0, len(turn.Steps))
		for _, step := range turn.Steps {
			args := "{}"
			if step.Intent.ParseError == "" && len(step.Intent.Arguments) > 0 {
				args = llmutils.ToJSON(step.Intent.Arguments)
			}
			calls = append(calls, llms.ToolCall{
				ID:   step.Intent.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      step.Intent.Name,
					Arguments: args,
				},
			})
			responses = append(responses, llms.ToolCallResponse{
				ToolCallID: step.Intent.ID,
				Name:       step.Intent.Name,
				Content:    step.Result.String(),
				IsError:    !step.Result.IsSuccess(),
			})
		}
		messages = append(messages,
			llms.MessageFromToolCalls(turn.Text, calls...),
			llms.MessageFromToolResponses(responses...),
		)
	}
	return messages
}
