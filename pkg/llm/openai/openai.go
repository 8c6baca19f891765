// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai implements llm.Provider on the OpenAI Responses API.
package openai

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/jllopis/agentcore/pkg/llm"
)

// Provider talks to the OpenAI Responses API, or to any server that
// implements it when a base URL is given.
type Provider struct {
	client *openai.Client
}

// New creates a provider. baseURL may be empty.
func New(apiKey, baseURL string, opts ...option.RequestOption) *Provider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by the agent.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	client := openai.NewClient(reqOpts...)
	return &Provider{client: &client}
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	params := responses.ResponseNewParams{
		Model: req.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(req.Messages),
		},
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	var opts []option.RequestOption
	if req.Temperature != 0 {
		opts = append(opts, option.WithJSONSet("temperature", req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, option.WithJSONSet("max_output_tokens", req.MaxTokens))
	}

	resp, err := p.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return nil, classify(err)
	}

	out := &llm.ChatResponse{
		Content: resp.OutputText(),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   fc.CallID,
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      fc.Name,
				Arguments: fc.Arguments,
			},
		})
	}
	return out, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &llm.ProviderError{Provider: "openai", Err: err}
}

func convertMessages(messages []llm.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleSystem))
		case llm.RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleUser))
		case llm.RoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					tc.Function.Arguments,
					tc.ID,
					tc.Function.Name,
				))
			}
		case llm.RoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, m.Content))
		}
	}
	return items
}

func convertTools(tools []llm.Tool) []responses.ToolUnionParam {
	var out []responses.ToolUnionParam
	for _, t := range tools {
		if t.Type != "" && t.Type != llm.ToolTypeFunction {
			continue
		}
		out = append(out, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}
