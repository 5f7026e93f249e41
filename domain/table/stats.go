package table

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// DistinctCap bounds per-column distinct-value counting so summaries stay
// cheap on wide categorical columns.
const DistinctCap = 50

// CategoricalLimit is the max distinct values for a column to be treated as
// categorical in NLU context.
const CategoricalLimit = 20

// ColumnSummary holds descriptive statistics for one column
type ColumnSummary struct {
	Name           string   `json:"name"`
	Type           CellType `json:"type"`
	Missing        int      `json:"missing"`
	DistinctCount  int      `json:"distinct_count"`
	DistinctCapped bool     `json:"distinct_capped"`

	// Numeric columns only
	HasNumeric bool    `json:"has_numeric"`
	Min        float64 `json:"min,omitempty"`
	Max        float64 `json:"max,omitempty"`
	Mean       float64 `json:"mean,omitempty"`
	StdDev     float64 `json:"std_dev,omitempty"`

	// Date columns only
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
}

// Summary describes a whole Dataset
type Summary struct {
	Rows        int                 `json:"total_rows"`
	Columns     int                 `json:"total_columns"`
	ColumnStats []ColumnSummary     `json:"column_stats"`
	Categories  map[string][]string `json:"categories"`
	NumericCols []string            `json:"numeric_columns"`
	DateRange   []string            `json:"date_range,omitempty"`
}

// Summarize computes descriptive statistics for every column without
// creating a new Dataset.
func Summarize(ds *Dataset) Summary {
	summary := Summary{
		Rows:       ds.RowCount(),
		Columns:    ds.ColumnCount(),
		Categories: make(map[string][]string),
	}

	for _, col := range ds.Columns() {
		cs := ColumnSummary{Name: col.Name, Type: col.Type}

		distinct := make(map[string]bool)
		var values []string
		var numbers []float64
		for _, cell := range col.Cells {
			if cell.IsEmpty() {
				cs.Missing++
				continue
			}
			if len(distinct) <= DistinctCap {
				key := cell.Display()
				if !distinct[key] {
					distinct[key] = true
					values = append(values, key)
				}
			}
			if cell.Type == TypeNumber {
				numbers = append(numbers, cell.Num)
			}
			if cell.Type == TypeDate {
				d := cell.Display()
				if cs.MinDate == "" || d < cs.MinDate {
					cs.MinDate = d
				}
				if d > cs.MaxDate {
					cs.MaxDate = d
				}
			}
		}

		cs.DistinctCount = len(distinct)
		if cs.DistinctCount > DistinctCap {
			cs.DistinctCount = DistinctCap
			cs.DistinctCapped = true
		}

		if len(numbers) > 0 {
			cs.HasNumeric = true
			cs.Min, _ = stats.Min(numbers)
			cs.Max, _ = stats.Max(numbers)
			cs.Mean, _ = stats.Mean(numbers)
			if len(numbers) > 1 {
				cs.StdDev = stat.StdDev(numbers, nil)
			}
		}

		if col.Type == TypeNumber {
			summary.NumericCols = append(summary.NumericCols, col.Name)
		}
		if col.Type == TypeDate && cs.MinDate != "" {
			if len(summary.DateRange) == 0 {
				summary.DateRange = []string{cs.MinDate, cs.MaxDate}
			}
		}
		if !cs.DistinctCapped && cs.DistinctCount > 0 && cs.DistinctCount <= CategoricalLimit {
			summary.Categories[col.Name] = values
		}

		summary.ColumnStats = append(summary.ColumnStats, cs)
	}

	return summary
}
