// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/memory"
)

// toMessages converts the retained window to provider messages. Retention
// can cut a tool round in half; tool results whose assistant call was pruned
// are left out, since providers reject a result without its call.
func toMessages(turns []memory.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	announced := make(map[string]bool)
	for _, t := range turns {
		msg := llm.Message{Role: llm.Role(t.Role), Content: t.Content}
		switch t.Role {
		case memory.RoleAssistant:
			for _, c := range t.ToolCalls {
				announced[c.ID] = true
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
					ID:       c.ID,
					Type:     llm.ToolTypeFunction,
					Function: llm.FunctionCall{Name: c.Name, Arguments: c.Arguments},
				})
			}
		case memory.RoleTool:
			if t.ToolCallID != "" && !announced[t.ToolCallID] {
				continue
			}
			msg.ToolCallID = t.ToolCallID
			msg.ToolName = t.ToolName
		}
		out = append(out, msg)
	}
	return out
}
