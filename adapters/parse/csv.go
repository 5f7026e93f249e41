package parse

import (
	"bytes"
	"context"
	"encoding/csv"
	"log"
	"path/filepath"
	"strings"

	"tabchat/domain/table"
	"tabchat/internal/errors"
)

// CSVParser reads .csv uploads into a Dataset
type CSVParser struct{}

func (p *CSVParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".csv"
}

func (p *CSVParser) Parse(ctx context.Context, filename string, data []byte) (*table.Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // tolerate ragged rows, FromRecords pads them

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ParseError("failed to read CSV"), err.Error())
	}
	if len(rows) < 1 {
		return nil, errors.ParseError("CSV file is empty")
	}

	ds, err := table.FromRecords(rows[0], rows[1:])
	if err != nil {
		return nil, errors.Wrap(errors.ParseError("failed to build dataset"), err.Error())
	}

	log.Printf("[CSVParser] Parsed %s: %d rows x %d columns", filename, ds.RowCount(), ds.ColumnCount())
	return ds, nil
}
