// Package openai implements llms.Model on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	ErrMissingToken = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
	ErrInvalidPart  = errors.New("openai: invalid content part")
)

// DefaultMaxTokens is the completion limit when none is set.
const DefaultMaxTokens = 4096

type LLM struct {
	client openai.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:   os.Getenv(TokenEnvVarName),
		baseURL: os.Getenv(BaseURLEnvVarName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}
	if o.model == "" {
		return nil, errors.New("openai: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithMaxRetries(values.NumbersCoalesce(o.maxRetries, 2)),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client: openai.NewClient(sdkOpts...),
		model:  o.model,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := ToMessages(messages)
	if err != nil {
		return nil, err
	}
	tools, err := ToTools(opts.Tools)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(opts.Model),
		Messages:            chatMsgs,
		MaxCompletionTokens: openai.Int(int64(values.NumbersCoalesce(opts.MaxTokens, DefaultMaxTokens))),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = tools
		if opts.ToolChoice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(opts.ToolChoice),
			}
		}
	}

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, errors.WithMessage(llms.ErrEmptyResponse, "openai")
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
				"ID":           result.ID,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// ToMessages converts the messages to chat completion messages.
// A tool message becomes one message per tool response.
func ToMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	list := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleSystem:
			list = append(list, openai.SystemMessage(textOf(msg)))
		case llms.RoleHuman:
			list = append(list, openai.UserMessage(textOf(msg)))
		case llms.RoleAI:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if text := textOf(msg); text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, part := range msg.Parts {
				tc, ok := part.(llms.ToolCall)
				if !ok || tc.FunctionCall == nil {
					continue
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.FunctionCall.Name,
							Arguments: values.StringsCoalesce(tc.FunctionCall.Arguments, "{}"),
						},
					},
				})
			}
			list = append(list, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case llms.RoleTool:
			for _, part := range msg.Parts {
				res, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.WithMessagef(ErrInvalidPart, "tool message part %T", part)
				}
				list = append(list, openai.ToolMessage(res.Content, res.ToolCallID))
			}
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "openai: %v", msg.Role)
		}
	}
	return list, nil
}

// ToTools converts LLM tool definitions to chat completion function tools.
func ToTools(tools []llms.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	list := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" || t.Function == nil {
			return nil, errors.Errorf("openai: tool type %q not supported", t.Type)
		}
		def := openai.FunctionDefinitionParam{
			Name: t.Function.Name,
		}
		if t.Function.Description != "" {
			def.Description = openai.String(t.Function.Description)
		}
		if t.Function.Parameters != nil {
			params, err := schema.ToMap(t.Function.Parameters)
			if err != nil {
				return nil, errors.WithMessagef(err, "openai: parameters of %q", t.Function.Name)
			}
			def.Parameters = openai.FunctionParameters(params)
		}
		list = append(list, openai.ChatCompletionFunctionTool(def))
	}
	return list, nil
}

func textOf(msg llms.Message) string {
	var text string
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}
