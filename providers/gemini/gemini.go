// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini implements llm.Provider on the Google Gemini API.
package gemini

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jllopis/agentcore/pkg/llm"
)

const DefaultModel = "gemini-2.5-flash"

// Provider implements llm.Provider for the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// New creates a provider. An empty apiKey lets the SDK read GOOGLE_API_KEY
// or GEMINI_API_KEY.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	p := &Provider{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	contents, config := buildRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, cmp.Or(req.Model, p.model), contents, config)
	if err != nil {
		return nil, classify(err)
	}
	return convertResponse(resp), nil
}

func buildRequest(req llm.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents, systemInstruction := convertMessages(req.Messages)

	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(req.Tools)}}
	}
	return contents, config
}

// convertMessages lifts the system message out and maps the rest to Gemini
// contents. Consecutive tool results share one user content, one
// FunctionResponse part each, matched to their call by tool name.
func convertMessages(messages []llm.Message) ([]*genai.Content, string) {
	var system string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = msg.Content
		case llm.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, "user"))
		case llm.RoleAssistant:
			contents = append(contents, modelContent(msg))
		case llm.RoleTool:
			part := functionResponse(msg)
			if last := len(contents) - 1; last >= 0 && isFunctionResponses(contents[last]) {
				contents[last].Parts = append(contents[last].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}
	return contents, system
}

func modelContent(msg llm.Message) *genai.Content {
	content := &genai.Content{Role: "model"}
	if msg.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{Name: call.Function.Name, Args: args},
		})
	}
	return content
}

// functionResponse wraps non-object tool output under "result".
func functionResponse(msg llm.Message) *genai.Part {
	var result map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &result); err != nil || result == nil {
		result = map[string]any{"result": msg.Content}
	}
	return &genai.Part{FunctionResponse: &genai.FunctionResponse{
		Name:     cmp.Or(msg.ToolName, msg.ToolCallID),
		Response: result,
	}}
}

func isFunctionResponses(c *genai.Content) bool {
	return c.Role == "user" && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func convertTools(tools []llm.Tool) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		})
	}
	return declarations
}

// toSchema maps a JSON Schema object onto genai.Schema, whose type names
// are upper case.
func toSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	schema := &genai.Schema{Type: toType(js["type"])}
	schema.Description, _ = js["description"].(string)
	schema.Enum = stringList(js["enum"])
	schema.Required = stringList(js["required"])

	if props, ok := js["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if sub, ok := p.(map[string]any); ok {
				schema.Properties[name] = toSchema(sub)
			}
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	return schema
}

func toType(v any) genai.Type {
	switch v {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeString
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// convertResponse reads the first candidate. Gemini calls carry no id; the
// agent assigns one.
func convertResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	result := &llm.ChatResponse{}
	if resp == nil {
		return result
	}
	if u := resp.UsageMetadata; u != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
		if fc := part.FunctionCall; fc != nil {
			args, _ := json.Marshal(fc.Args)
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				Type:     llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: fc.Name, Arguments: string(args)},
			})
		}
	}
	result.Content = text.String()
	return result
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	return &llm.ProviderError{Provider: "gemini", Err: err}
}

var _ llm.Provider = (*Provider)(nil)
