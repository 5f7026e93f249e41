package ai

import (
	"fmt"
	"strings"

	"tabchat/domain/chat"
	"tabchat/domain/table"
)

// Validate checks a resolved operation against the live schema and returns
// the operation with column names normalized to their canonical casing, or a
// Clarification naming the offending field.
func Validate(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	switch op.Action {
	case chat.ActionFilter:
		return validateFilter(op, dctx)
	case chat.ActionPivot:
		return validatePivot(op, dctx)
	case chat.ActionAggregate:
		return validateAggregate(op, dctx)
	case chat.ActionVisualize:
		return validateVisualize(op, dctx)
	case chat.ActionExport:
		return validateExport(op, dctx)
	case chat.ActionQuery, chat.ActionReset:
		if len(dctx.Schema) == 0 {
			return op, &chat.Clarification{Field: "dataset", Reason: "no dataset is loaded yet, upload a file first"}
		}
		return op, nil
	default:
		return op, &chat.Clarification{Field: "action", Reason: fmt.Sprintf("unsupported action %q", op.Action)}
	}
}

// resolveColumn finds a schema column case-insensitively and returns its
// canonical name.
func resolveColumn(name string, schema []table.ColumnSchema) (table.ColumnSchema, bool) {
	for _, col := range schema {
		if col.Name == name {
			return col, true
		}
	}
	for _, col := range schema {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return table.ColumnSchema{}, false
}

func requireDataset(dctx DatasetContext) *chat.Clarification {
	if len(dctx.Schema) == 0 {
		return &chat.Clarification{Field: "dataset", Reason: "no dataset is loaded yet, upload a file first"}
	}
	return nil
}

func validateFilter(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	if c := requireDataset(dctx); c != nil {
		return op, c
	}
	f := op.Filter
	if f == nil || f.Column == "" {
		return op, &chat.Clarification{Field: "column", Reason: "which column should I filter on?"}
	}

	col, ok := resolveColumn(f.Column, dctx.Schema)
	if !ok {
		return op, &chat.Clarification{Field: "column", Reason: fmt.Sprintf("column %q does not exist", f.Column)}
	}

	switch f.Operator {
	case chat.OpEquals, chat.OpNotEquals, chat.OpContains, chat.OpGreaterThan, chat.OpLessThan:
		if f.Value == "" {
			return op, &chat.Clarification{Field: "value", Reason: "what value should I compare against?"}
		}
		// contains always works on the display string; the ordered and
		// equality operators need a value coercible to the column type
		if f.Operator != chat.OpContains {
			if _, err := table.CoerceLiteral(f.Value, col.Type); err != nil {
				return op, &chat.Clarification{
					Field:  "value",
					Reason: fmt.Sprintf("%v for column %q (%s)", err, col.Name, col.Type),
				}
			}
		}
		if f.Operator == chat.OpGreaterThan || f.Operator == chat.OpLessThan {
			if col.Type != table.TypeNumber && col.Type != table.TypeDate {
				return op, &chat.Clarification{
					Field:  "operator",
					Reason: fmt.Sprintf("column %q is %s; ordered comparison needs a number or date column", col.Name, col.Type),
				}
			}
		}
	case chat.OpInSet:
		if len(f.Values) == 0 {
			return op, &chat.Clarification{Field: "values", Reason: "which set of values should I keep?"}
		}
	default:
		return op, &chat.Clarification{Field: "operator", Reason: fmt.Sprintf("unsupported operator %q", f.Operator)}
	}

	normalized := *f
	normalized.Column = col.Name
	out := op
	out.Filter = &normalized
	return out, nil
}

func validatePivot(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	if c := requireDataset(dctx); c != nil {
		return op, c
	}
	p := op.Pivot
	if p == nil || len(p.Rows) == 0 {
		return op, &chat.Clarification{Field: "rows", Reason: "which column(s) should form the pivot rows?"}
	}
	if p.Values == "" {
		return op, &chat.Clarification{Field: "values", Reason: "which column should I aggregate?"}
	}
	if !chat.ValidAggFunc(p.Agg) {
		return op, &chat.Clarification{Field: "agg", Reason: fmt.Sprintf("unsupported aggregation %q (use sum, mean, count, min or max)", p.Agg)}
	}

	// Copy the slices so clarification paths leave the caller's op untouched
	normalized := *p
	normalized.Rows = append([]string(nil), p.Rows...)
	normalized.Columns = append([]string(nil), p.Columns...)
	for i, name := range p.Rows {
		col, ok := resolveColumn(name, dctx.Schema)
		if !ok {
			return op, &chat.Clarification{Field: "rows", Reason: fmt.Sprintf("column %q does not exist", name)}
		}
		normalized.Rows[i] = col.Name
	}
	for i, name := range p.Columns {
		col, ok := resolveColumn(name, dctx.Schema)
		if !ok {
			return op, &chat.Clarification{Field: "columns", Reason: fmt.Sprintf("column %q does not exist", name)}
		}
		normalized.Columns[i] = col.Name
	}

	valueCol, ok := resolveColumn(p.Values, dctx.Schema)
	if !ok {
		return op, &chat.Clarification{Field: "values", Reason: fmt.Sprintf("column %q does not exist", p.Values)}
	}
	if p.Agg != chat.AggCount && valueCol.Type != table.TypeNumber {
		return op, &chat.Clarification{
			Field:  "values",
			Reason: fmt.Sprintf("column %q is %s; %s needs a numeric value column", valueCol.Name, valueCol.Type, p.Agg),
		}
	}
	normalized.Values = valueCol.Name

	out := op
	out.Pivot = &normalized
	return out, nil
}

func validateAggregate(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	if c := requireDataset(dctx); c != nil {
		return op, c
	}
	a := op.Aggregate
	if a == nil || len(a.GroupBy) == 0 {
		return op, &chat.Clarification{Field: "group_by", Reason: "which column(s) should I group by?"}
	}
	if a.Values == "" {
		return op, &chat.Clarification{Field: "values", Reason: "which column should I aggregate?"}
	}
	if !chat.ValidAggFunc(a.Agg) {
		return op, &chat.Clarification{Field: "agg", Reason: fmt.Sprintf("unsupported aggregation %q (use sum, mean, count, min or max)", a.Agg)}
	}

	normalized := *a
	normalized.GroupBy = append([]string(nil), a.GroupBy...)
	for i, name := range a.GroupBy {
		col, ok := resolveColumn(name, dctx.Schema)
		if !ok {
			return op, &chat.Clarification{Field: "group_by", Reason: fmt.Sprintf("column %q does not exist", name)}
		}
		normalized.GroupBy[i] = col.Name
	}

	valueCol, ok := resolveColumn(a.Values, dctx.Schema)
	if !ok {
		return op, &chat.Clarification{Field: "values", Reason: fmt.Sprintf("column %q does not exist", a.Values)}
	}
	if a.Agg != chat.AggCount && valueCol.Type != table.TypeNumber {
		return op, &chat.Clarification{
			Field:  "values",
			Reason: fmt.Sprintf("column %q is %s; %s needs a numeric value column", valueCol.Name, valueCol.Type, a.Agg),
		}
	}
	normalized.Values = valueCol.Name

	out := op
	out.Aggregate = &normalized
	return out, nil
}

func validateVisualize(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	if c := requireDataset(dctx); c != nil {
		return op, c
	}
	v := op.Visualize
	if v == nil {
		return op, &chat.Clarification{Field: "chart_type", Reason: "what kind of chart would you like?"}
	}

	normalized := *v
	if normalized.ChartType == "" {
		normalized.ChartType = "auto"
	}
	switch normalized.ChartType {
	case "bar", "line", "pie", "auto":
	default:
		return op, &chat.Clarification{Field: "chart_type", Reason: fmt.Sprintf("unsupported chart type %q (use bar, line, pie or auto)", v.ChartType)}
	}

	// Time-series charts need a date/time column somewhere in the schema
	if normalized.ChartType == "line" {
		hasDate := false
		for _, col := range dctx.Schema {
			if col.Type == table.TypeDate {
				hasDate = true
				break
			}
		}
		if !hasDate {
			return op, &chat.Clarification{Field: "chart_type", Reason: "a line chart needs a date column, and this dataset has none"}
		}
	}

	if normalized.X != "" {
		col, ok := resolveColumn(normalized.X, dctx.Schema)
		if !ok {
			return op, &chat.Clarification{Field: "x", Reason: fmt.Sprintf("column %q does not exist", normalized.X)}
		}
		normalized.X = col.Name
	}
	if normalized.Y != "" {
		col, ok := resolveColumn(normalized.Y, dctx.Schema)
		if !ok {
			return op, &chat.Clarification{Field: "y", Reason: fmt.Sprintf("column %q does not exist", normalized.Y)}
		}
		if col.Type != table.TypeNumber {
			return op, &chat.Clarification{Field: "y", Reason: fmt.Sprintf("column %q is %s; the y axis needs a numeric column", col.Name, col.Type)}
		}
		normalized.Y = col.Name
	}

	out := op
	out.Visualize = &normalized
	return out, nil
}

func validateExport(op chat.Operation, dctx DatasetContext) (chat.Operation, *chat.Clarification) {
	if c := requireDataset(dctx); c != nil {
		return op, c
	}
	e := op.Export
	if e == nil || len(e.Formats) == 0 {
		return op, &chat.Clarification{Field: "formats", Reason: "which formats would you like: slides, pdf, chart or spreadsheet?"}
	}
	for _, f := range e.Formats {
		if !chat.ValidFormat(f) {
			return op, &chat.Clarification{Field: "formats", Reason: fmt.Sprintf("unsupported format %q", f)}
		}
	}
	return op, nil
}
