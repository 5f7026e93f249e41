package ai

import (
	"strings"

	"tabchat/domain/chat"
)

// ExtractIntent is the keyword heuristic used when the NLU collaborator is
// unreachable or returns garbage. It is deliberately coarse; anything it
// produces still goes through Validate before the engine sees it.
func ExtractIntent(message string) (*chat.Operation, float64) {
	lower := strings.ToLower(message)

	if containsAny(lower, "export", "download", "save", "generate") {
		var formats []chat.Format
		if strings.Contains(lower, "slide") || strings.Contains(lower, "ppt") || strings.Contains(lower, "powerpoint") {
			formats = append(formats, chat.FormatSlides)
		}
		if strings.Contains(lower, "pdf") {
			formats = append(formats, chat.FormatPDF)
		}
		if strings.Contains(lower, "excel") || strings.Contains(lower, "xlsx") || strings.Contains(lower, "spreadsheet") {
			formats = append(formats, chat.FormatSpreadsheet)
		}
		if strings.Contains(lower, "chart") {
			formats = append(formats, chat.FormatChart)
		}
		if len(formats) > 0 {
			return &chat.Operation{
				Action: chat.ActionExport,
				Export: &chat.ExportOp{Formats: formats},
			}, 0.6
		}
		// Export with no recognizable format: let validation ask
		return &chat.Operation{Action: chat.ActionExport, Export: &chat.ExportOp{}}, 0.4
	}

	if containsAny(lower, "chart", "graph", "visualize", "plot") {
		chartType := "auto"
		switch {
		case strings.Contains(lower, "bar"):
			chartType = "bar"
		case strings.Contains(lower, "line"):
			chartType = "line"
		case strings.Contains(lower, "pie"):
			chartType = "pie"
		}
		return &chat.Operation{
			Action:    chat.ActionVisualize,
			Visualize: &chat.VisualizeOp{ChartType: chartType},
		}, 0.5
	}

	if containsAny(lower, "pivot") {
		return &chat.Operation{Action: chat.ActionPivot, Pivot: &chat.PivotOp{Agg: chat.AggSum}}, 0.4
	}

	if containsAny(lower, "reset", "start over", "undo everything", "original data") {
		return &chat.Operation{Action: chat.ActionReset}, 0.7
	}

	if containsAny(lower, "summary", "describe", "statistics", "stats", "how many rows", "row count") {
		return &chat.Operation{Action: chat.ActionQuery}, 0.6
	}

	if containsAny(lower, "filter", "only", "just", "where") {
		// Too little structure to guess column and value; validation will
		// come back with a clarification asking for the column.
		return &chat.Operation{Action: chat.ActionFilter, Filter: &chat.FilterOp{Operator: chat.OpEquals}}, 0.4
	}

	return nil, 0
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
