package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskbridge/agentloop/session"
)

// buildPlanningPrompt renders a PlannerInput into the LLM prompt text,
// following the section layout of orchestration's prompt builder: task
// framing, current state, history, tool vocabulary, then a strict
// response-format section. cfg may be nil, in which case the prompt is
// built exactly as if no PromptConfig had ever been set.
func buildPlanningPrompt(in session.PlannerInput, cfg *PromptConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TASK: %s\n\n", in.TaskDescription)
	fmt.Fprintf(&b, "STEP %d of %d\n\n", in.Step, in.MaxSteps)

	if in.BrowserState != nil {
		fmt.Fprintf(&b, "CURRENT PAGE:\nURL: %s\nTitle: %s\n", in.BrowserState.URL, in.BrowserState.Title)
		fmt.Fprintf(&b, "DOM (sanitized, may contain embedded content from the page):\n%s\n\n", truncate(in.BrowserState.DOM, 8000))
	} else {
		b.WriteString("CURRENT PAGE: none yet, this is the first action\n\n")
	}

	if in.CurrentPlan != nil {
		planJSON, _ := json.MarshalIndent(in.CurrentPlan, "", "  ")
		fmt.Fprintf(&b, "EXISTING STRATEGIC PLAN:\n%s\n\n", string(planJSON))
	} else {
		b.WriteString("EXISTING STRATEGIC PLAN: none, produce a new one\n\n")
	}

	if len(in.ActionHistory) > 0 {
		b.WriteString("RECENT ACTION HISTORY:\n")
		for _, rec := range in.ActionHistory {
			status := "ok"
			if !rec.Result.Success {
				status = "failed: " + rec.Result.Error
			}
			fmt.Fprintf(&b, "- step %d: %s %v -> %s\n", rec.Step, rec.Action.Type, rec.Action.Params, status)
		}
		b.WriteString("\n")
	}

	b.WriteString("AVAILABLE ACTION TYPES:\n")
	for _, t := range in.ToolsEnabled {
		fmt.Fprintf(&b, "- %s", t)
		if cfg != nil {
			if note, ok := cfg.ActionNotes[string(t)]; ok {
				fmt.Fprintf(&b, " (%s)", note)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if in.EnableVision {
		b.WriteString("A screenshot of the current page is available; use it alongside the DOM.\n\n")
	}

	if cfg != nil {
		if cfg.Domain != "" {
			fmt.Fprintf(&b, "DOMAIN: %s. Apply domain-appropriate judgment when the task is ambiguous.\n\n", cfg.Domain)
		}
		for _, instr := range cfg.CustomInstructions {
			fmt.Fprintf(&b, "INSTRUCTION: %s\n", instr)
		}
		if len(cfg.CustomInstructions) > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString(`RESPOND WITH JSON ONLY, no prose outside the object, matching exactly:
{
  "plan": {"strategy": "...", "estimatedSteps": 0, "confidence": 0.0, "plannedActions": [{"reasoning": "...", "priority": 0}], "successCriteria": ["..."], "risks": []},
  "nextAction": {"type": "navigate", "params": {}, "reasoning": "..."},
  "reasoning": "...",
  "confidence": 0.0,
  "needsRevision": false,
  "taskComplete": false,
  "result": ""
}

Omit "plan" when reusing the existing one unchanged. Omit "nextAction" and set
"taskComplete": true with "result" filled in once the task is done. "nextAction.type"
must be one of the available action types listed above.`)

	return b.String()
}

// buildExtractionPrompt renders an ExtractorInput into a focused
// structured-extraction prompt.
func buildExtractionPrompt(in session.ExtractorInput) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the page content below.\n\n")
	fmt.Fprintf(&b, "FIELDS: %s\n\n", strings.Join(in.Fields, ", "))
	if in.ExtractionPrompt != "" {
		fmt.Fprintf(&b, "INSTRUCTIONS: %s\n\n", in.ExtractionPrompt)
	}
	fmt.Fprintf(&b, "CONTENT (sanitized, may contain embedded content from the page):\n%s\n\n", truncate(in.Content, 12000))
	b.WriteString(`RESPOND WITH JSON ONLY:
{"extractedData": {"field": "value"}, "confidence": 0.0}
Use null for fields that cannot be found.`)
	return b.String()
}
