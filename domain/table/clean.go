package table

import (
	"fmt"
	"regexp"
	"strings"
)

// CleanConfig controls the cleaning pass applied after parsing an upload
type CleanConfig struct {
	NormalizeHeaders bool
	DropEmptyRows    bool
	DropEmptyColumns bool
	RemoveDuplicates bool

	// Drop a column when its share of empty cells exceeds this threshold
	EmptyColumnThreshold float64
}

// DefaultCleanConfig mirrors the defaults users expect from an upload:
// normalized headers, no fully-empty rows, no duplicate rows.
func DefaultCleanConfig() CleanConfig {
	return CleanConfig{
		NormalizeHeaders:     true,
		DropEmptyRows:        true,
		DropEmptyColumns:     true,
		RemoveDuplicates:     true,
		EmptyColumnThreshold: 0.95,
	}
}

// CleanReport records what the cleaning pass changed
type CleanReport struct {
	OriginalRows      int               `json:"original_rows"`
	OriginalColumns   int               `json:"original_columns"`
	FinalRows         int               `json:"final_rows"`
	FinalColumns      int               `json:"final_columns"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	EmptyRowsRemoved  int               `json:"empty_rows_removed"`
	ColumnsDropped    []string          `json:"columns_dropped,omitempty"`
	HeadersRenamed    map[string]string `json:"headers_renamed,omitempty"`
}

func (r CleanReport) String() string {
	return fmt.Sprintf("cleaned %dx%d -> %dx%d (dupes=%d, empty rows=%d, cols dropped=%d)",
		r.OriginalRows, r.OriginalColumns, r.FinalRows, r.FinalColumns,
		r.DuplicatesRemoved, r.EmptyRowsRemoved, len(r.ColumnsDropped))
}

var headerCleanup = regexp.MustCompile(`[^a-z0-9_]+`)

// NormalizeHeader converts a header to snake_case ascii
func NormalizeHeader(name string) string {
	h := strings.ToLower(strings.TrimSpace(name))
	h = strings.ReplaceAll(h, " ", "_")
	h = headerCleanup.ReplaceAllString(h, "_")
	h = strings.Trim(h, "_")
	if h == "" {
		return "column"
	}
	return h
}

// Clean applies the configured cleaning operations and returns the cleaned
// Dataset plus a report of everything that changed. The input Dataset is
// never modified.
func Clean(ds *Dataset, cfg CleanConfig) (*Dataset, CleanReport) {
	report := CleanReport{
		OriginalRows:    ds.RowCount(),
		OriginalColumns: ds.ColumnCount(),
		HeadersRenamed:  make(map[string]string),
	}

	columns := ds.Columns()

	if cfg.DropEmptyColumns {
		kept := make([]Column, 0, len(columns))
		for _, col := range columns {
			empty := 0
			for _, c := range col.Cells {
				if c.IsEmpty() {
					empty++
				}
			}
			if len(col.Cells) > 0 && float64(empty)/float64(len(col.Cells)) > cfg.EmptyColumnThreshold {
				report.ColumnsDropped = append(report.ColumnsDropped, col.Name)
				continue
			}
			kept = append(kept, col)
		}
		if len(kept) > 0 {
			columns = kept
		}
	}

	if cfg.NormalizeHeaders {
		renamed := make([]Column, len(columns))
		for i, col := range columns {
			name := NormalizeHeader(col.Name)
			if name != col.Name {
				report.HeadersRenamed[col.Name] = name
			}
			renamed[i] = Column{Name: name, Type: col.Type, Cells: col.Cells}
		}
		columns = renamed
	}

	working := &Dataset{columns: columns, rowCount: ds.RowCount(), warnings: ds.Warnings()}

	var keep []int
	seen := make(map[string]bool)
	for r := 0; r < working.RowCount(); r++ {
		row := working.Row(r)

		if cfg.DropEmptyRows {
			allEmpty := true
			for _, c := range row {
				if !c.IsEmpty() {
					allEmpty = false
					break
				}
			}
			if allEmpty {
				report.EmptyRowsRemoved++
				continue
			}
		}

		if cfg.RemoveDuplicates {
			key := rowKey(row)
			if seen[key] {
				report.DuplicatesRemoved++
				continue
			}
			seen[key] = true
		}

		keep = append(keep, r)
	}

	cleaned := working.SelectRows(keep)
	report.FinalRows = cleaned.RowCount()
	report.FinalColumns = cleaned.ColumnCount()
	return cleaned, report
}

func rowKey(row []Cell) string {
	parts := make([]string, len(row))
	for i, c := range row {
		parts[i] = c.Display()
	}
	return strings.Join(parts, "\x1f")
}
