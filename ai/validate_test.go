package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabchat/domain/chat"
	"tabchat/domain/table"
)

func schemaContext() DatasetContext {
	return DatasetContext{Schema: []table.ColumnSchema{
		{Name: "Region", Type: table.TypeString},
		{Name: "Sales", Type: table.TypeNumber},
		{Name: "Month", Type: table.TypeDate},
	}}
}

func TestValidateRequiresDataset(t *testing.T) {
	op := chat.Operation{Action: chat.ActionQuery}
	_, clarification := Validate(op, DatasetContext{})
	require.NotNil(t, clarification)
	assert.Equal(t, "dataset", clarification.Field)
}

func TestValidateFilterNormalizesColumnCase(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "region", Operator: chat.OpEquals, Value: "West"},
	}
	normalized, clarification := Validate(op, schemaContext())
	require.Nil(t, clarification)
	assert.Equal(t, "Region", normalized.Filter.Column)
}

func TestValidateFilterOrderedNeedsNumericOrDate(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Region", Operator: chat.OpGreaterThan, Value: "West"},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "operator", clarification.Field)
}

func TestValidateFilterValueMustCoerce(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Sales", Operator: chat.OpGreaterThan, Value: "lots"},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "value", clarification.Field)
}

func TestValidateFilterInSetNeedsValues(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Region", Operator: chat.OpInSet},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "values", clarification.Field)
}

func TestValidatePivotNeedsNumericValues(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionPivot,
		Pivot:  &chat.PivotOp{Rows: []string{"Region"}, Values: "Region", Agg: chat.AggSum},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "values", clarification.Field)
}

func TestValidatePivotCountAllowsAnyValueColumn(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionPivot,
		Pivot:  &chat.PivotOp{Rows: []string{"region"}, Values: "region", Agg: chat.AggCount},
	}
	normalized, clarification := Validate(op, schemaContext())
	require.Nil(t, clarification)
	assert.Equal(t, []string{"Region"}, normalized.Pivot.Rows)
	assert.Equal(t, "Region", normalized.Pivot.Values)
}

func TestValidatePivotLeavesCallerUntouchedOnClarification(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionPivot,
		Pivot:  &chat.PivotOp{Rows: []string{"region", "bogus"}, Values: "Sales", Agg: chat.AggSum},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "rows", clarification.Field)

	// Normalization must not write through into the caller's slices, even
	// when an earlier element resolved before the clarification
	assert.Equal(t, []string{"region", "bogus"}, op.Pivot.Rows)
}

func TestValidateAggregateLeavesCallerUntouchedOnClarification(t *testing.T) {
	op := chat.Operation{
		Action:    chat.ActionAggregate,
		Aggregate: &chat.AggregateOp{GroupBy: []string{"region", "bogus"}, Values: "Sales", Agg: chat.AggSum},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "group_by", clarification.Field)
	assert.Equal(t, []string{"region", "bogus"}, op.Aggregate.GroupBy)
}

func TestValidateVisualizeLineNeedsDateColumn(t *testing.T) {
	dctx := DatasetContext{Schema: []table.ColumnSchema{
		{Name: "Region", Type: table.TypeString},
		{Name: "Sales", Type: table.TypeNumber},
	}}
	op := chat.Operation{
		Action:    chat.ActionVisualize,
		Visualize: &chat.VisualizeOp{ChartType: "line"},
	}
	_, clarification := Validate(op, dctx)
	require.NotNil(t, clarification)
	assert.Contains(t, clarification.Reason, "date column")

	// The same request passes once a date column exists
	_, clarification = Validate(op, schemaContext())
	assert.Nil(t, clarification)
}

func TestValidateVisualizeYAxisMustBeNumeric(t *testing.T) {
	op := chat.Operation{
		Action:    chat.ActionVisualize,
		Visualize: &chat.VisualizeOp{ChartType: "bar", X: "Region", Y: "Month"},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "y", clarification.Field)
}

func TestValidateExportRejectsUnknownFormat(t *testing.T) {
	op := chat.Operation{
		Action: chat.ActionExport,
		Export: &chat.ExportOp{Formats: []chat.Format{"docx"}},
	}
	_, clarification := Validate(op, schemaContext())
	require.NotNil(t, clarification)
	assert.Equal(t, "formats", clarification.Field)
}
