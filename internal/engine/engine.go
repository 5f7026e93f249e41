package engine

import (
	"fmt"
	"log"
	"strings"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/internal/errors"
	"tabchat/internal/tabular"
)

// PreviewRows bounds how many rows go back over the channel in one message
const PreviewRows = 5

// ExportSpec is the engine's hand-off to the Export Coordinator. Snapshot is
// an immutable Dataset, so later session operations cannot corrupt an
// in-flight export.
type ExportSpec struct {
	Formats  []chat.Format
	Title    string
	Options  map[string]string
	Snapshot *table.Dataset
}

// Result is the outcome of applying one operation
type Result struct {
	View    *table.Dataset // nil when the operation did not derive a view
	Summary string
	Preview *chat.Preview
	Export  *ExportSpec // set for visualize/export operations
}

// Apply interprets a validated operation against the store. Filter, pivot
// and aggregate push a new derived view; query reads without deriving;
// visualize and export produce an ExportSpec for the coordinator. On any
// error the store is left unchanged so the prior view stays intact.
func Apply(op chat.Operation, store *tabular.Store) (Result, error) {
	current, err := store.CurrentView()
	if err != nil {
		return Result{}, errors.Wrap(errors.OperationError("no dataset loaded"), err.Error())
	}

	switch op.Action {
	case chat.ActionFilter:
		view, err := applyFilter(*op.Filter, current)
		if err != nil {
			return Result{}, err
		}
		store.Push(view)
		summary := fmt.Sprintf("Applied %s: %d of %d rows match.", op.Describe(), view.RowCount(), current.RowCount())
		log.Printf("[Engine] %s", summary)
		return Result{View: view, Summary: summary, Preview: BuildPreview(view)}, nil

	case chat.ActionPivot:
		view, err := applyPivot(*op.Pivot, current)
		if err != nil {
			return Result{}, err
		}
		store.Push(view)
		summary := fmt.Sprintf("Built pivot table: %d rows x %d columns.", view.RowCount(), view.ColumnCount())
		log.Printf("[Engine] %s", summary)
		return Result{View: view, Summary: summary, Preview: BuildPreview(view)}, nil

	case chat.ActionAggregate:
		view, err := applyAggregate(*op.Aggregate, current)
		if err != nil {
			return Result{}, err
		}
		store.Push(view)
		summary := fmt.Sprintf("Grouped into %d rows by %s.", view.RowCount(), strings.Join(op.Aggregate.GroupBy, ", "))
		log.Printf("[Engine] %s", summary)
		return Result{View: view, Summary: summary, Preview: BuildPreview(view)}, nil

	case chat.ActionQuery:
		summary := describeDataset(current)
		return Result{Summary: summary, Preview: BuildPreview(current)}, nil

	case chat.ActionReset:
		if err := store.Reset(); err != nil {
			return Result{}, errors.Wrap(errors.OperationError("reset failed"), err.Error())
		}
		original, _ := store.CurrentView()
		summary := fmt.Sprintf("Back to the original data: %d rows x %d columns.", original.RowCount(), original.ColumnCount())
		return Result{View: original, Summary: summary, Preview: BuildPreview(original)}, nil

	case chat.ActionVisualize:
		v := op.Visualize
		options := map[string]string{"chart_type": v.ChartType}
		if v.X != "" {
			options["x"] = v.X
		}
		if v.Y != "" {
			options["y"] = v.Y
		}
		// A chart is a degenerate single-format export
		spec := &ExportSpec{
			Formats:  []chat.Format{chat.FormatChart},
			Title:    v.Title,
			Options:  options,
			Snapshot: current,
		}
		return Result{
			Summary: fmt.Sprintf("Rendering a %s chart of the current view (%d rows).", v.ChartType, current.RowCount()),
			Export:  spec,
		}, nil

	case chat.ActionExport:
		e := op.Export
		options := map[string]string{}
		if e.SlideStyle != "" {
			options["slide_style"] = e.SlideStyle
		}
		spec := &ExportSpec{
			Formats:  e.Formats,
			Title:    e.Title,
			Options:  options,
			Snapshot: current,
		}
		return Result{
			Summary: fmt.Sprintf("Exporting the current view (%d rows) as %s.", current.RowCount(), formatList(e.Formats)),
			Export:  spec,
		}, nil

	default:
		return Result{}, errors.OperationError(fmt.Sprintf("unsupported action %q", op.Action))
	}
}

// BuildPreview returns the first PreviewRows rows plus the total row count
func BuildPreview(ds *table.Dataset) *chat.Preview {
	rows := ds.HeadRecords(PreviewRows)
	return &chat.Preview{
		Columns:   ds.ColumnNames(),
		Rows:      rows,
		TotalRows: ds.RowCount(),
		ShownRows: len(rows),
	}
}

func formatList(formats []chat.Format) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
