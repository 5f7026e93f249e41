package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/internal/tabular"
)

func loadedStore(t *testing.T, headers []string, records [][]string) *tabular.Store {
	t.Helper()
	ds, err := table.FromRecords(headers, records)
	require.NoError(t, err)
	store := tabular.NewStore()
	store.Load(ds)
	return store
}

func salesStore(t *testing.T) *tabular.Store {
	return loadedStore(t,
		[]string{"Category", "Region", "Month", "Sales"},
		[][]string{
			{"Electronics", "West", "2024-01-01", "120"},
			{"Electronics", "East", "2024-01-01", "80"},
			{"Furniture", "West", "2024-02-01", "200"},
			{"Electronics", "West", "2024-02-01", "150"},
			{"Furniture", "East", "2024-01-01", "90"},
		},
	)
}

func TestApplyFilterEquals(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Category", Operator: chat.OpEquals, Value: "Electronics"},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)

	assert.Equal(t, 3, result.View.RowCount())
	// Column set is untouched by a filter
	original, _ := store.Original()
	assert.Equal(t, original.ColumnNames(), result.View.ColumnNames())
	assert.Equal(t, 2, store.Depth())
}

func TestApplyFilterIsIdempotent(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Category", Operator: chat.OpEquals, Value: "Electronics"},
	}

	first, err := Apply(op, store)
	require.NoError(t, err)
	second, err := Apply(op, store)
	require.NoError(t, err)

	assert.Equal(t, first.View.RowCount(), second.View.RowCount())
}

func TestApplyFilterGreaterThan(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Sales", Operator: chat.OpGreaterThan, Value: "100"},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)
	assert.Equal(t, 3, result.View.RowCount())
}

func TestApplyFilterInSet(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Region", Operator: chat.OpInSet, Values: []string{"East"}},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.View.RowCount())
}

func TestApplyFilterUnknownColumnLeavesStoreUnchanged(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Nope", Operator: chat.OpEquals, Value: "x"},
	}

	_, err := Apply(op, store)
	assert.Error(t, err)
	assert.Equal(t, 1, store.Depth())
}

func TestApplyPivotIsRectangularWithZeroFill(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionPivot,
		Pivot: &chat.PivotOp{
			Rows:    []string{"Region"},
			Columns: []string{"Month"},
			Values:  "Sales",
			Agg:     chat.AggSum,
		},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)
	view := result.View

	// Two regions by two months, every combination present
	assert.Equal(t, 2, view.RowCount())
	assert.Equal(t, 3, view.ColumnCount())

	east, ok := view.Column("2024-02-01")
	require.True(t, ok)
	// East has no February sales: sum fills with 0, keeping the grid rectangular
	var eastRow int
	regions, _ := view.Column("Region")
	for i, c := range regions.Cells {
		if c.Display() == "East" {
			eastRow = i
		}
	}
	assert.Equal(t, 0.0, east.Cells[eastRow].Num)
	assert.False(t, east.Cells[eastRow].IsEmpty())
}

func TestApplyPivotMeanFillsEmpty(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionPivot,
		Pivot: &chat.PivotOp{
			Rows:    []string{"Region"},
			Columns: []string{"Month"},
			Values:  "Sales",
			Agg:     chat.AggMean,
		},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)

	feb, ok := result.View.Column("2024-02-01")
	require.True(t, ok)
	regions, _ := result.View.Column("Region")
	for i, c := range regions.Cells {
		if c.Display() == "East" {
			assert.True(t, feb.Cells[i].IsEmpty())
		}
	}
}

func TestApplyAggregateGroupsRows(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionAggregate,
		Aggregate: &chat.AggregateOp{
			GroupBy: []string{"Category"},
			Values:  "Sales",
			Agg:     chat.AggSum,
		},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)
	view := result.View

	assert.Equal(t, 2, view.RowCount())
	sums, ok := view.Column("sum_Sales")
	require.True(t, ok)

	categories, _ := view.Column("Category")
	got := map[string]float64{}
	for i, c := range categories.Cells {
		got[c.Display()] = sums.Cells[i].Num
	}
	assert.Equal(t, 350.0, got["Electronics"])
	assert.Equal(t, 290.0, got["Furniture"])
}

func TestApplyQueryDoesNotDeriveView(t *testing.T) {
	store := salesStore(t)
	result, err := Apply(chat.Operation{Action: chat.ActionQuery}, store)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Depth())
	assert.Contains(t, result.Summary, "5 rows")
	assert.NotNil(t, result.Preview)
}

func TestApplyResetRestoresOriginal(t *testing.T) {
	store := salesStore(t)
	filter := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Region", Operator: chat.OpEquals, Value: "West"},
	}
	_, err := Apply(filter, store)
	require.NoError(t, err)
	require.Equal(t, 2, store.Depth())

	result, err := Apply(chat.Operation{Action: chat.ActionReset}, store)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Depth())
	assert.Equal(t, 5, result.View.RowCount())
}

func TestApplyVisualizeProducesChartExport(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action:    chat.ActionVisualize,
		Visualize: &chat.VisualizeOp{ChartType: "bar", X: "Region", Y: "Sales"},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)

	require.NotNil(t, result.Export)
	assert.Equal(t, []chat.Format{chat.FormatChart}, result.Export.Formats)
	assert.Equal(t, "bar", result.Export.Options["chart_type"])
	assert.Nil(t, result.View)
	assert.Equal(t, 1, store.Depth())
}

func TestApplyExportSnapshotSurvivesLaterOperations(t *testing.T) {
	store := salesStore(t)
	op := chat.Operation{
		Action: chat.ActionExport,
		Export: &chat.ExportOp{Formats: []chat.Format{chat.FormatSpreadsheet}, Title: "Sales"},
	}

	result, err := Apply(op, store)
	require.NoError(t, err)
	snapshot := result.Export.Snapshot
	require.Equal(t, 5, snapshot.RowCount())

	filter := chat.Operation{
		Action: chat.ActionFilter,
		Filter: &chat.FilterOp{Column: "Region", Operator: chat.OpEquals, Value: "West"},
	}
	_, err = Apply(filter, store)
	require.NoError(t, err)

	// The snapshot taken at export time is immutable
	assert.Equal(t, 5, snapshot.RowCount())
}

func TestApplyWithoutDatasetFails(t *testing.T) {
	store := tabular.NewStore()
	_, err := Apply(chat.Operation{Action: chat.ActionQuery}, store)
	assert.Error(t, err)
}

func TestBuildPreviewBoundsRows(t *testing.T) {
	records := make([][]string, 20)
	for i := range records {
		records[i] = []string{"x"}
	}
	ds, err := table.FromRecords([]string{"col"}, records)
	require.NoError(t, err)

	preview := BuildPreview(ds)
	assert.Equal(t, PreviewRows, preview.ShownRows)
	assert.Equal(t, 20, preview.TotalRows)
	assert.Len(t, preview.Rows, PreviewRows)
}
