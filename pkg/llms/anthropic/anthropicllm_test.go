package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/llms/anthropic"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "")

	tests := []struct {
		name        string
		opts        []anthropic.Option
		errContains string
	}{
		{
			name:        "missing token",
			opts:        []anthropic.Option{anthropic.WithModel("claude-sonnet-4-5")},
			errContains: "missing API key",
		},
		{
			name:        "missing model",
			opts:        []anthropic.Option{anthropic.WithToken("fake-token")},
			errContains: "model is required",
		},
		{
			name: "valid",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel("claude-sonnet-4-5"),
				anthropic.WithBaseURL("https://custom.anthropic.com"),
				anthropic.WithHTTPClient(&http.Client{}),
				anthropic.WithMaxRetries(1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm, err := anthropic.New(tt.opts...)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "claude-sonnet-4-5", llm.GetName())
			assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())
		})
	}

	t.Setenv(anthropic.TokenEnvVarName, "env-token")
	llm, err := anthropic.New(anthropic.WithModel("claude-sonnet-4-5"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", llm.Options.Token)
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a developer assistant."),
		llms.MessageFromTextParts(llms.RoleSystem, "Be brief."),
		llms.MessageFromTextParts(llms.RoleHuman, "find TODOs"),
		llms.MessageFromToolCalls("searching", llms.ToolCall{
			ID:           "toolu_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "search_repo", Arguments: `{"keyword":"TODO"}`},
		}),
		llms.MessageFromToolResponses(llms.ToolCallResponse{ToolCallID: "toolu_1", Name: "search_repo", Content: "2 matches"}),
		{Role: llms.RoleHuman},
	}

	list, system, err := anthropic.ProcessMessages(messages)
	require.NoError(t, err)
	assert.Equal(t, "You are a developer assistant.\nBe brief.", system)
	require.Len(t, list, 3)
	assert.Equal(t, "user", string(list[0].Role))
	assert.Equal(t, "assistant", string(list[1].Role))
	require.Len(t, list[1].Content, 2)
	require.NotNil(t, list[1].Content[1].OfToolUse)
	assert.Equal(t, "search_repo", list[1].Content[1].OfToolUse.Name)
	assert.Equal(t, "user", string(list[2].Role))
	require.NotNil(t, list[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", list[2].Content[0].OfToolResult.ToolUseID)

	_, _, err = anthropic.ProcessMessages([]llms.Message{llms.MessageFromTextParts("generic", "x")})
	assert.True(t, errors.Is(err, anthropic.ErrUnsupportedMessageType))

	_, _, err = anthropic.ProcessMessages([]llms.Message{llms.MessageFromToolCalls("", llms.ToolCall{
		ID:           "toolu_2",
		FunctionCall: &llms.FunctionCall{Name: "search_repo", Arguments: `{"keyword":`},
	})})
	assert.Error(t, err)

	_, _, err = anthropic.ProcessMessages([]llms.Message{llms.MessageFromParts(llms.RoleTool, llms.TextPart("x"))})
	assert.True(t, errors.Is(err, anthropic.ErrInvalidContentType))
}

func TestToTools(t *testing.T) {
	t.Parallel()

	assert.Nil(t, anthropic.ToTools(nil))

	spec := &mcp.ToolSpec{
		Name:        "search_repo",
		Description: "Searches the repository",
		Params: []mcp.ParamSpec{
			{Name: "keyword", Type: mcp.TypeString, Required: true},
			{Name: "glob", Type: mcp.TypeString},
		},
	}
	tools := anthropic.ToTools([]llms.Tool{
		llms.FunctionTool(spec.Name, spec.Description, schema.ForTool(spec)),
		llms.FunctionTool("run_tests", "Runs tests", schema.ForTool(&mcp.ToolSpec{Name: "run_tests"})),
	})
	require.Len(t, tools, 2)
	tool := tools[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "search_repo", tool.Name)
	assert.Equal(t, "object", string(tool.InputSchema.Type))
	assert.Equal(t, []string{"keyword"}, tool.InputSchema.Required)
	assert.Len(t, tool.InputSchema.Properties, 2)

	assert.Empty(t, tools[1].OfTool.InputSchema.Properties)
	assert.NotNil(t, tools[1].OfTool.InputSchema.Properties)
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var request map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "fake-token", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &request)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Let me search."},
				{"type": "tool_use", "id": "toolu_01", "name": "search_repo", "input": {"keyword": "TODO"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	}))
	defer srv.Close()

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel("claude-sonnet-4-5"),
		anthropic.WithBaseURL(srv.URL),
		anthropic.WithMaxRetries(1),
	)
	require.NoError(t, err)

	spec := &mcp.ToolSpec{Name: "search_repo", Params: []mcp.ParamSpec{{Name: "keyword", Type: mcp.TypeString, Required: true}}}
	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "system prompt"),
			llms.MessageFromTextParts(llms.RoleHuman, "find TODOs"),
		},
		llms.WithMaxTokens(512),
		llms.WithTools([]llms.Tool{llms.FunctionTool(spec.Name, "search", schema.ForTool(spec))}),
		llms.WithToolChoice(llms.ToolChoiceRequired),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	assert.Equal(t, "Let me search.", choice.Content)
	assert.Equal(t, "tool_use", choice.StopReason)
	require.Len(t, choice.ToolCalls, 1)
	assert.Equal(t, "toolu_01", choice.ToolCalls[0].ID)
	assert.Equal(t, "search_repo", choice.ToolCalls[0].FunctionCall.Name)
	assert.JSONEq(t, `{"keyword":"TODO"}`, choice.ToolCalls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 150, choice.GenerationInfo["TotalTokens"])

	assert.Equal(t, "claude-sonnet-4-5", request["model"])
	assert.EqualValues(t, 512, request["max_tokens"])
	assert.Equal(t, map[string]any{"type": "any"}, request["tool_choice"])
	system, _ := request["system"].([]any)
	require.Len(t, system, 1)
	tools, _ := request["tools"].([]any)
	require.Len(t, tools, 1)
}
