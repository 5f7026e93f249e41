package chat

import (
	"fmt"
	"strings"
)

// Action identifies the kind of structured operation resolved from an
// utterance.
type Action string

const (
	ActionFilter    Action = "filter"
	ActionPivot     Action = "pivot"
	ActionAggregate Action = "aggregate"
	ActionVisualize Action = "visualize"
	ActionExport    Action = "export"
	ActionQuery     Action = "query"
	ActionReset     Action = "reset"
)

// KnownActions lists every action the engine can interpret
var KnownActions = []Action{
	ActionFilter, ActionPivot, ActionAggregate,
	ActionVisualize, ActionExport, ActionQuery, ActionReset,
}

// FilterOperator is the comparison applied by a Filter operation
type FilterOperator string

const (
	OpEquals      FilterOperator = "equals"
	OpNotEquals   FilterOperator = "not_equals"
	OpContains    FilterOperator = "contains"
	OpGreaterThan FilterOperator = "greater_than"
	OpLessThan    FilterOperator = "less_than"
	OpInSet       FilterOperator = "in_set"
)

// AggFunc is an aggregation function for Pivot/Aggregate
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggCount AggFunc = "count"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// ValidAggFunc reports whether f is a supported aggregation function
func ValidAggFunc(f AggFunc) bool {
	switch f {
	case AggSum, AggMean, AggCount, AggMin, AggMax:
		return true
	}
	return false
}

// Format is an export output format
type Format string

const (
	FormatSlides      Format = "slides"
	FormatPDF         Format = "pdf"
	FormatChart       Format = "chart"
	FormatSpreadsheet Format = "spreadsheet"
)

// SupportedFormats is the closed set of export formats
var SupportedFormats = []Format{FormatSlides, FormatPDF, FormatChart, FormatSpreadsheet}

// ValidFormat reports whether f is a supported export format
func ValidFormat(f Format) bool {
	for _, s := range SupportedFormats {
		if f == s {
			return true
		}
	}
	return false
}

// Operation is a tagged variant: Action selects which parameter struct is
// set. Operations are values; the engine interprets them.
type Operation struct {
	Action Action `json:"action"`

	Filter    *FilterOp    `json:"filter,omitempty"`
	Pivot     *PivotOp     `json:"pivot,omitempty"`
	Aggregate *AggregateOp `json:"aggregate,omitempty"`
	Visualize *VisualizeOp `json:"visualize,omitempty"`
	Export    *ExportOp    `json:"export,omitempty"`
}

// FilterOp keeps rows matching a predicate over one column
type FilterOp struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value,omitempty"`
	Values   []string       `json:"values,omitempty"` // in_set only
}

// PivotOp groups by row-keys x column-keys and aggregates a value column
type PivotOp struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Values  string   `json:"values"`
	Agg     AggFunc  `json:"agg"`
}

// AggregateOp groups without pivoting to columns: one row per key combination
type AggregateOp struct {
	GroupBy []string `json:"group_by"`
	Values  string   `json:"values"`
	Agg     AggFunc  `json:"agg"`
}

// VisualizeOp requests a chart over the current view
type VisualizeOp struct {
	ChartType string `json:"chart_type"` // bar, line, pie, auto
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ExportOp requests rendering the current view in one or more formats
type ExportOp struct {
	Formats    []Format `json:"formats"`
	SlideStyle string   `json:"slide_style,omitempty"` // business, minimal, data
	Title      string   `json:"title,omitempty"`
}

// Describe returns a short human-readable description of the operation,
// used for history and summaries.
func (op Operation) Describe() string {
	switch op.Action {
	case ActionFilter:
		if op.Filter == nil {
			return "filter"
		}
		if op.Filter.Operator == OpInSet {
			return fmt.Sprintf("filter %s in [%s]", op.Filter.Column, strings.Join(op.Filter.Values, ", "))
		}
		return fmt.Sprintf("filter %s %s %s", op.Filter.Column, op.Filter.Operator, op.Filter.Value)
	case ActionPivot:
		if op.Pivot == nil {
			return "pivot"
		}
		return fmt.Sprintf("pivot rows=%s cols=%s %s(%s)",
			strings.Join(op.Pivot.Rows, ","), strings.Join(op.Pivot.Columns, ","), op.Pivot.Agg, op.Pivot.Values)
	case ActionAggregate:
		if op.Aggregate == nil {
			return "aggregate"
		}
		return fmt.Sprintf("aggregate by %s %s(%s)",
			strings.Join(op.Aggregate.GroupBy, ","), op.Aggregate.Agg, op.Aggregate.Values)
	case ActionVisualize:
		if op.Visualize == nil {
			return "visualize"
		}
		return fmt.Sprintf("visualize %s chart", op.Visualize.ChartType)
	case ActionExport:
		if op.Export == nil {
			return "export"
		}
		parts := make([]string, len(op.Export.Formats))
		for i, f := range op.Export.Formats {
			parts[i] = string(f)
		}
		return fmt.Sprintf("export %s", strings.Join(parts, ", "))
	case ActionReset:
		return "reset to original data"
	default:
		return string(op.Action)
	}
}
