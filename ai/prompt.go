package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"tabchat/domain/table"
)

// Exchange is one completed user/assistant turn kept for NLU context
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// DatasetContext is the bounded view of the session handed to the NLU
// collaborator: schema, a few sample rows, and recent history.
type DatasetContext struct {
	Schema  []table.ColumnSchema
	Summary table.Summary
	Sample  [][]string
	History []Exchange
}

const systemPrompt = `You are a helpful data analysis assistant. You help users filter, pivot, aggregate, visualize and export their tabular data through natural conversation.

Respond ONLY with a JSON object of this shape:
{
  "message": "Your reply to the user",
  "intent": {
    "action": "filter|pivot|aggregate|visualize|export|query|reset",
    "parameters": { ... },
    "confidence": 0.0-1.0
  },
  "quick_actions": ["Suggestion 1", "Suggestion 2"]
}

Set "intent" to null when the user is just chatting or the request is unclear.

Parameter shapes per action:
- filter: {"column": "...", "operator": "equals|not_equals|contains|greater_than|less_than|in_set", "value": "...", "values": ["..."]}
- pivot: {"rows": ["..."], "columns": ["..."], "values": "...", "agg": "sum|mean|count|min|max"}
- aggregate: {"group_by": ["..."], "values": "...", "agg": "sum|mean|count|min|max"}
- visualize: {"chart_type": "bar|line|pie|auto", "x": "...", "y": "...", "title": "..."}
- export: {"formats": ["slides","pdf","chart","spreadsheet"], "slide_style": "business|minimal|data", "title": "..."}
- query: {}
- reset: {}

Only reference columns that exist in the dataset. Be concise.`

// BuildSystemPrompt appends the dataset context to the base system prompt
func BuildSystemPrompt(dctx DatasetContext) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if len(dctx.Schema) == 0 {
		b.WriteString("\n\nNo dataset is loaded yet. Ask the user to upload a file before data operations.")
		return b.String()
	}

	b.WriteString("\n\nCurrent dataset schema:\n")
	for _, col := range dctx.Schema {
		b.WriteString(fmt.Sprintf("- %s\n", col))
	}

	b.WriteString(fmt.Sprintf("\nRows: %d\n", dctx.Summary.Rows))

	if len(dctx.Summary.Categories) > 0 {
		cats, err := json.Marshal(dctx.Summary.Categories)
		if err == nil {
			b.WriteString("Categorical values: ")
			b.Write(cats)
			b.WriteString("\n")
		}
	}

	if len(dctx.Sample) > 0 {
		b.WriteString("Sample rows:\n")
		for _, row := range dctx.Sample {
			b.WriteString("  " + strings.Join(row, " | ") + "\n")
		}
	}

	return b.String()
}
