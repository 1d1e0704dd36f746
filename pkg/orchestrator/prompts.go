package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alpkeskin/gotoon"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

// DefaultSystemPrompt describes the assistant persona.
const DefaultSystemPrompt = `You are a personal assistant that manages the user's Google Calendar.
You can list, search, create, update and delete events, summarize calendar activity
and use the other tools listed below. Never invent events or tool results.`

const (
	decideHeader     = "## TASK: DECIDE"
	evaluateHeader   = "## TASK: EVALUATE"
	synthesizeHeader = "## TASK: ANSWER"
)

// framing selects how the final answer is presented.
type framing string

const (
	framingComplete framing = "complete"
	framingPartial  framing = "partial"
	framingAborted  framing = "aborted"
)

func renderManifest(specs []tools.Spec) string {
	if len(specs) == 0 {
		return "(no tools available)"
	}
	entries := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		params := make([]map[string]any, 0, len(s.Parameters))
		names := make([]string, 0, len(s.Parameters))
		for name := range s.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := s.Parameters[name]
			entry := map[string]any{"name": name, "type": p.Type, "required": p.Required}
			if p.Description != "" {
				entry["description"] = p.Description
			}
			if len(p.Enum) > 0 {
				entry["enum"] = strings.Join(p.Enum, "|")
			}
			params = append(params, entry)
		}
		entry := map[string]any{"name": s.Name, "description": s.Description, "parameters": params}
		if len(s.Examples) > 0 {
			entry["examples"] = s.Examples
		}
		entries = append(entries, entry)
	}
	out, err := gotoon.Encode(map[string]any{"tools": entries})
	if err != nil {
		var b strings.Builder
		for _, s := range specs {
			fmt.Fprintf(&b, "- %s: %s %s\n", s.Name, s.Description, compact(s.JSONSchema()))
		}
		return b.String()
	}
	return strings.TrimSpace(out)
}

func toolDefinitions(specs []tools.Spec) []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, models.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.JSONSchema(),
		})
	}
	return defs
}

func renderHistory(history []Turn) string {
	if len(history) == 0 {
		return "(no earlier messages)"
	}
	var b strings.Builder
	for _, t := range history {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// context writes the sections shared by every phase.
func writeContext(b *strings.Builder, system string, req Request, manifest string, steps []Step) {
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\n## AVAILABLE TOOLS\n")
	b.WriteString(manifest)
	b.WriteString("\n\n## CHAT HISTORY\n")
	b.WriteString(renderHistory(req.History))
	b.WriteString("\n\n## USER MESSAGE\n")
	b.WriteString(strings.TrimSpace(req.Message))
	b.WriteString("\n\n## INTERNAL LOG\n")
	b.WriteString(Render(steps))
	b.WriteString("\n\n")
}

func decisionPrompt(system string, req Request, manifest string, steps []Step, now time.Time, remainingCalls int, native bool) string {
	var b strings.Builder
	writeContext(&b, system, req, manifest, steps)
	b.WriteString(decideHeader + "\n")
	fmt.Fprintf(&b, "Current time: %s. Remaining tool calls: %d.\n", now.Format("Monday, 2006-01-02 15:04 MST"), remainingCalls)
	b.WriteString("Decide whether a tool call is needed to answer the user message, taking everything in the internal log into account.\n")
	b.WriteString("Only use tools from the list above, with exactly the listed names and required parameters. Do not repeat a call that already succeeded.\n")
	if native {
		b.WriteString("Call a tool if one is needed; otherwise reply with a short note that no tool is required.\n")
		return b.String()
	}
	b.WriteString(`Respond with ONLY a JSON object, no markdown:
{"use_tool": true, "tool": "<tool name>", "arguments": {...}, "reasoning": "<why>"}
or, when no tool is needed:
{"use_tool": false, "reasoning": "<why>"}
`)
	return b.String()
}

func evaluationPrompt(system string, req Request, manifest string, steps []Step) string {
	var b strings.Builder
	writeContext(&b, system, req, manifest, steps)
	b.WriteString(evaluateHeader + "\n")
	b.WriteString(`Assess the evidence gathered in the internal log.
- "sufficient": the log contains enough to answer the user.
- "continue": another tool call would help.
- "stuck": the request cannot be completed with the available tools or keeps failing.
Respond with ONLY a JSON object, no markdown:
{"status": "sufficient" | "continue" | "stuck", "reasoning": "<why>"}
`)
	return b.String()
}

// synthesisPrompt is a pure function of its arguments.
func synthesisPrompt(system string, req Request, manifest string, steps []Step, f framing, reason ErrorKind) string {
	var b strings.Builder
	writeContext(&b, system, req, manifest, steps)
	b.WriteString(synthesizeHeader + "\n")
	b.WriteString("Write the final reply to the user message using every relevant result in the internal log. Combine results from all tool calls into one coherent answer. Do not mention the internal log or tool names.\n")
	switch f {
	case framingPartial:
		b.WriteString("The request could only be partly completed. Share what was found, say clearly what is missing and apologise briefly.\n")
	case framingAborted:
		fmt.Fprintf(&b, "Processing stopped early (%s). Share whatever partial information the log contains and tell the user the request was not fully completed.\n", strings.ReplaceAll(string(reason), "_", " "))
	}
	return b.String()
}
