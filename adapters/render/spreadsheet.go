package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/ports"
)

// SpreadsheetRenderer writes a Dataset snapshot to an .xlsx workbook on
// local disk and returns its path as the artifact locator.
type SpreadsheetRenderer struct {
	OutputDir string
}

func NewSpreadsheetRenderer(outputDir string) (*SpreadsheetRenderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &SpreadsheetRenderer{OutputDir: outputDir}, nil
}

func (r *SpreadsheetRenderer) Format() chat.Format {
	return chat.FormatSpreadsheet
}

func (r *SpreadsheetRenderer) Render(ctx context.Context, req ports.RenderRequest) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	names := req.Dataset.ColumnNames()
	for c, name := range names {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for c, col := range req.Dataset.Columns() {
		for row, value := range col.Cells {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			cell, err := excelize.CoordinatesToCellName(c+1, row+2)
			if err != nil {
				return "", fmt.Errorf("failed to address cell: %w", err)
			}
			var v interface{}
			switch {
			case value.IsEmpty():
				continue
			case value.Type == table.TypeNumber:
				v = value.Num
			case value.Type == table.TypeBool:
				v = value.Bool
			case value.Type == table.TypeDate:
				v = value.Time
			default:
				v = value.Str
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	name := fmt.Sprintf("export_%d.xlsx", time.Now().UnixNano())
	path := filepath.Join(r.OutputDir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	log.Printf("[SpreadsheetRenderer] Wrote %d rows to %s", req.Dataset.RowCount(), path)
	return path, nil
}
