package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tabchat/domain/core"
)

// Dataset is an immutable rectangular table of typed columns. Operations
// never mutate a Dataset in place; they build a new one (cell values are
// shared structurally), so earlier views stay valid for history and for
// in-flight exports.
type Dataset struct {
	columns  []Column
	rowCount int
	warnings []string
}

// NewDataset constructs a Dataset from columns. All columns must have equal
// length. Duplicate column names are resolved last-write-wins with a warning
// recorded on the dataset (not fatal).
func NewDataset(columns []Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, core.ErrEmptyDataset
	}

	rows := len(columns[0].Cells)
	for _, col := range columns {
		if len(col.Cells) != rows {
			return nil, fmt.Errorf("%w: column %q has %d cells, expected %d",
				core.ErrRaggedColumns, col.Name, len(col.Cells), rows)
		}
	}

	var warnings []string
	seen := make(map[string]int, len(columns))
	deduped := make([]Column, 0, len(columns))
	for _, col := range columns {
		key := strings.ToLower(col.Name)
		if idx, ok := seen[key]; ok {
			warnings = append(warnings, fmt.Sprintf("duplicate column %q: keeping last occurrence", col.Name))
			deduped[idx] = col
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, col)
	}

	return &Dataset{columns: deduped, rowCount: rows, warnings: warnings}, nil
}

// FromRecords builds a Dataset from raw string records, inferring cell and
// column types. Short rows are padded with empty cells.
func FromRecords(headers []string, records [][]string) (*Dataset, error) {
	if len(headers) == 0 {
		return nil, core.ErrEmptyDataset
	}

	columns := make([]Column, len(headers))
	for i, name := range headers {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		cells := make([]Cell, len(records))
		for r, record := range records {
			if i < len(record) {
				cells[r] = ParseCell(record[i])
			} else {
				cells[r] = EmptyCell()
			}
		}
		columns[i] = Column{Name: name, Type: dominantType(cells), Cells: cells}
	}

	return NewDataset(columns)
}

func (d *Dataset) RowCount() int    { return d.rowCount }
func (d *Dataset) ColumnCount() int { return len(d.columns) }

// Columns returns the dataset's columns. Callers must treat the result as
// read-only.
func (d *Dataset) Columns() []Column { return d.columns }

// ColumnNames returns the ordered column names
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Warnings returns non-fatal issues recorded during construction
func (d *Dataset) Warnings() []string { return d.warnings }

// Schema returns (name, inferred type) pairs for NLU context
func (d *Dataset) Schema() []ColumnSchema {
	schema := make([]ColumnSchema, len(d.columns))
	for i, col := range d.columns {
		schema[i] = ColumnSchema{Name: col.Name, Type: col.Type}
	}
	return schema
}

// FindColumn locates a column by name, trying an exact match before a
// case-insensitive one.
func (d *Dataset) FindColumn(name string) (int, bool) {
	for i, col := range d.columns {
		if col.Name == name {
			return i, true
		}
	}
	for i, col := range d.columns {
		if strings.EqualFold(col.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// Column returns the column with the given name
func (d *Dataset) Column(name string) (Column, bool) {
	if i, ok := d.FindColumn(name); ok {
		return d.columns[i], true
	}
	return Column{}, false
}

// Row returns the cells of row i in column order
func (d *Dataset) Row(i int) []Cell {
	row := make([]Cell, len(d.columns))
	for c, col := range d.columns {
		row[c] = col.Cells[i]
	}
	return row
}

// SelectRows builds a new Dataset keeping only the given row indices, in
// order. The column set is unchanged; cell values are shared.
func (d *Dataset) SelectRows(indices []int) *Dataset {
	columns := make([]Column, len(d.columns))
	for c, col := range d.columns {
		cells := make([]Cell, len(indices))
		for r, idx := range indices {
			cells[r] = col.Cells[idx]
		}
		columns[c] = Column{Name: col.Name, Type: col.Type, Cells: cells}
	}
	return &Dataset{columns: columns, rowCount: len(indices), warnings: d.warnings}
}

// HeadRecords returns up to n rows as display strings, for previews
func (d *Dataset) HeadRecords(n int) [][]string {
	if n > d.rowCount {
		n = d.rowCount
	}
	records := make([][]string, n)
	for r := 0; r < n; r++ {
		record := make([]string, len(d.columns))
		for c, col := range d.columns {
			record[c] = col.Cells[r].Display()
		}
		records[r] = record
	}
	return records
}

// SampleRecords returns up to n rows including headers, for NLU context
func (d *Dataset) SampleRecords(n int) [][]string {
	return d.HeadRecords(n)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseCell infers the type of a raw string value and returns the typed cell
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EmptyCell()
	}

	lower := strings.ToLower(trimmed)
	if lower == "true" || lower == "false" {
		return BoolCell(lower == "true")
	}

	// Numbers may carry thousands separators or a currency prefix
	numeric := strings.ReplaceAll(trimmed, ",", "")
	numeric = strings.TrimPrefix(numeric, "$")
	if f, err := strconv.ParseFloat(numeric, 64); err == nil {
		return NumberCell(f)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DateCell(t)
		}
	}

	return StringCell(trimmed)
}

// CoerceLiteral converts a user-supplied literal to a cell of the target
// column type. Returns an error when the value cannot represent that type.
func CoerceLiteral(value string, target CellType) (Cell, error) {
	trimmed := strings.TrimSpace(value)
	switch target {
	case TypeNumber:
		numeric := strings.ReplaceAll(trimmed, ",", "")
		numeric = strings.TrimPrefix(numeric, "$")
		f, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return Cell{}, fmt.Errorf("%q is not a number", value)
		}
		return NumberCell(f), nil
	case TypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return DateCell(t), nil
			}
		}
		return Cell{}, fmt.Errorf("%q is not a recognizable date", value)
	case TypeBool:
		b, err := strconv.ParseBool(strings.ToLower(trimmed))
		if err != nil {
			return Cell{}, fmt.Errorf("%q is not a boolean", value)
		}
		return BoolCell(b), nil
	default:
		return StringCell(trimmed), nil
	}
}

// dominantType picks the majority type among non-empty cells; mixed columns
// degrade to string, all-empty columns stay empty.
func dominantType(cells []Cell) CellType {
	counts := make(map[CellType]int)
	for _, c := range cells {
		if !c.IsEmpty() {
			counts[c.Type]++
		}
	}
	if len(counts) == 0 {
		return TypeEmpty
	}

	var best CellType
	bestCount := -1
	total := 0
	for t, n := range counts {
		total += n
		if n > bestCount {
			best, bestCount = t, n
		}
	}
	// A column is only typed when the dominant type covers a strict
	// majority of values; an even split or worse is treated as text.
	if bestCount*2 <= total {
		return TypeString
	}
	return best
}
