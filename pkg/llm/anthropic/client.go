// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package anthropic implements llm.Provider on top of the Anthropic
// Messages API via the official SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/shuttle"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"

	// DefaultMaxTokens caps completion length per request.
	DefaultMaxTokens = 4096
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string  // Default: claude-sonnet-4-5-20250929
	MaxTokens   int     // Default: 4096
	Temperature float64 // Zero leaves the provider default in place
	ToolChoice  string  // "auto" (default) or "required"
}

// Client implements llm.Provider for Anthropic's Claude models.
type Client struct {
	messages    sdk.MessageService
	model       string
	maxTokens   int
	temperature float64
	toolChoice  string
}

// NewClient creates an Anthropic-backed provider. The API key falls
// back to ANTHROPIC_API_KEY when unset.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	client := sdk.NewClient(option.WithAPIKey(config.APIKey))
	return &Client{
		messages:    client.Messages,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		toolChoice:  config.ToolChoice,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "anthropic" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	nameMap := make(map[string]string, len(tools))
	apiTools, err := encodeTools(tools, nameMap)
	if err != nil {
		return nil, err
	}
	apiMessages, system, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  apiMessages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(apiTools) > 0 {
		params.Tools = apiTools
		if choice, ok := encodeToolChoice(c.toolChoice); ok {
			params.ToolChoice = choice
		}
	}
	if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg, nameMap), nil
}

// encodeMessages converts provider-neutral messages to SDK params.
// System messages become separate system blocks, as the Messages API
// requires them outside the conversation array.
func encodeMessages(messages []llm.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(messages))
	var system []sdk.TextBlockParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: msg.Content})
			}

		case "user":
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))

		case "assistant":
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Input
				if input == nil {
					// the API rejects null input on tool_use blocks
					input = map[string]interface{}{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, llm.SanitizeToolName(tc.Name)))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}

		case "tool":
			conversation = append(conversation, sdk.NewUserMessage(
				sdk.NewToolResultBlock(msg.ToolUseID, msg.Content, false)))

		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}
	return conversation, system, nil
}

// encodeToolChoice maps the configured mode to the SDK union. Auto is
// the provider default and stays unset; "required" forces a tool_use
// block in the reply.
func encodeToolChoice(mode string) (sdk.ToolChoiceUnionParam, bool) {
	if mode == "required" {
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, true
	}
	return sdk.ToolChoiceUnionParam{}, false
}

// encodeTools converts shuttle tools to SDK tool params, sanitizing
// names and recording the sanitized-to-original mapping.
func encodeTools(tools []shuttle.Tool, nameMap map[string]string) ([]sdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	apiTools := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		original := tool.Name()
		sanitized := llm.SanitizeToolName(original)
		nameMap[sanitized] = original

		schema, err := toolInputSchema(tool.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", original, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, sanitized)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(tool.Description())
		}
		apiTools = append(apiTools, u)
	}
	return apiTools, nil
}

func toolInputSchema(schema *shuttle.JSONSchema) (sdk.ToolInputSchemaParam, error) {
	if schema == nil {
		return sdk.ToolInputSchemaParam{}, nil
	}
	raw, err := schema.ToJSON()
	if err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message, nameMap map[string]string) *llm.Response {
	resp := &llm.Response{
		StopReason: string(msg.StopReason),
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Metadata: map[string]interface{}{
			"model": string(msg.Model),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:    block.ID,
				Name:  llm.ReverseToolName(nameMap, block.Name),
				Input: input,
			})
		}
	}
	return resp
}

var _ llm.Provider = (*Client)(nil)
