package parse

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tabchat/domain/table"
	"tabchat/internal/errors"
)

// ExcelParser reads .xlsx uploads into a Dataset. Only the first sheet is
// used; additional sheets are ignored with a log line.
type ExcelParser struct{}

func (p *ExcelParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".xlsx" || ext == ".xls"
}

func (p *ExcelParser) Parse(ctx context.Context, filename string, data []byte) (*table.Dataset, error) {
	start := time.Now()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ParseError("failed to open Excel file"), err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ParseError("Excel file has no sheets")
	}
	if len(sheets) > 1 {
		log.Printf("[ExcelParser] %s has %d sheets, using %q", filename, len(sheets), sheets[0])
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(errors.ParseError("failed to read sheet"), "sheet %s: %v", sheets[0], err)
	}
	if len(rows) < 1 {
		return nil, errors.ParseError("Excel sheet is empty")
	}

	headers := rows[0]
	records := rows[1:]

	ds, err := table.FromRecords(headers, records)
	if err != nil {
		return nil, errors.Wrap(errors.ParseError("failed to build dataset"), err.Error())
	}

	log.Printf("[ExcelParser] Parsed %s: %d rows x %d columns in %.2fms",
		filename, ds.RowCount(), ds.ColumnCount(), float64(time.Since(start).Nanoseconds())/1e6)
	return ds, nil
}
