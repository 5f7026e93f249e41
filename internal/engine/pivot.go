package engine

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/internal/errors"
)

// maxPivotColumns guards against pivoting on a high-cardinality column
const maxPivotColumns = 100

// applyPivot groups rows by the cross product of row-keys and column-keys
// and aggregates the value column. Every (row-key, column-key) combination
// appears exactly once in the output; combinations absent from the input are
// filled with 0 for sum/count and an empty cell for mean/min/max, so the
// result is always rectangular.
func applyPivot(p chat.PivotOp, ds *table.Dataset) (*table.Dataset, error) {
	rowIdx, err := columnIndices(ds, p.Rows)
	if err != nil {
		return nil, err
	}
	colIdx, err := columnIndices(ds, p.Columns)
	if err != nil {
		return nil, err
	}
	valIdx, ok := ds.FindColumn(p.Values)
	if !ok {
		return nil, errors.OperationError(fmt.Sprintf("column %q not found", p.Values))
	}

	columns := ds.Columns()
	valCol := columns[valIdx]

	var rowKeys []string
	rowCells := make(map[string][]table.Cell)
	var colKeys []string
	seenCol := make(map[string]bool)
	nums := make(map[string]map[string][]float64)
	counts := make(map[string]map[string]int)

	for r := 0; r < ds.RowCount(); r++ {
		rk := keyOf(columns, rowIdx, r)
		if _, ok := rowCells[rk]; !ok {
			rowKeys = append(rowKeys, rk)
			cells := make([]table.Cell, len(rowIdx))
			for i, ci := range rowIdx {
				cells[i] = columns[ci].Cells[r]
			}
			rowCells[rk] = cells
			nums[rk] = make(map[string][]float64)
			counts[rk] = make(map[string]int)
		}

		ck := keyOf(columns, colIdx, r)
		if !seenCol[ck] {
			seenCol[ck] = true
			colKeys = append(colKeys, ck)
			if len(colKeys) > maxPivotColumns {
				return nil, errors.OperationError(fmt.Sprintf(
					"pivot would produce more than %d columns; pick a lower-cardinality column", maxPivotColumns))
			}
		}

		v := valCol.Cells[r]
		if v.IsEmpty() {
			continue
		}
		counts[rk][ck]++
		if v.Type == table.TypeNumber {
			nums[rk][ck] = append(nums[rk][ck], v.Num)
		}
	}

	out := make([]table.Column, 0, len(rowIdx)+len(colKeys))
	for i, ci := range rowIdx {
		cells := make([]table.Cell, len(rowKeys))
		for r, rk := range rowKeys {
			cells[r] = rowCells[rk][i]
		}
		out = append(out, table.Column{Name: columns[ci].Name, Type: columns[ci].Type, Cells: cells})
	}

	for _, ck := range colKeys {
		name := ck
		if name == "" {
			name = fmt.Sprintf("%s_%s", p.Agg, valCol.Name)
		}
		cells := make([]table.Cell, len(rowKeys))
		for r, rk := range rowKeys {
			cells[r] = aggregateBucket(p.Agg, nums[rk][ck], counts[rk][ck])
		}
		out = append(out, table.Column{Name: name, Type: table.TypeNumber, Cells: cells})
	}

	return table.NewDataset(out)
}

// applyAggregate groups without pivoting to columns: one row per group-key
// combination plus a single aggregated column.
func applyAggregate(a chat.AggregateOp, ds *table.Dataset) (*table.Dataset, error) {
	return applyPivot(chat.PivotOp{
		Rows:   a.GroupBy,
		Values: a.Values,
		Agg:    a.Agg,
	}, ds)
}

// aggregateBucket reduces one (row-key, column-key) bucket to a cell. Absent
// combinations get the defined sentinel: zero for sum/count, empty for
// mean/min/max.
func aggregateBucket(agg chat.AggFunc, values []float64, count int) table.Cell {
	switch agg {
	case chat.AggCount:
		return table.NumberCell(float64(count))
	case chat.AggSum:
		if len(values) == 0 {
			return table.NumberCell(0)
		}
		sum, _ := stats.Sum(values)
		return table.NumberCell(sum)
	case chat.AggMean:
		if len(values) == 0 {
			return table.EmptyCell()
		}
		mean, _ := stats.Mean(values)
		return table.NumberCell(mean)
	case chat.AggMin:
		if len(values) == 0 {
			return table.EmptyCell()
		}
		min, _ := stats.Min(values)
		return table.NumberCell(min)
	case chat.AggMax:
		if len(values) == 0 {
			return table.EmptyCell()
		}
		max, _ := stats.Max(values)
		return table.NumberCell(max)
	default:
		return table.EmptyCell()
	}
}

func columnIndices(ds *table.Dataset, names []string) ([]int, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		idx, ok := ds.FindColumn(name)
		if !ok {
			return nil, errors.OperationError(fmt.Sprintf("column %q not found", name))
		}
		indices[i] = idx
	}
	return indices, nil
}

// keyOf joins the display values of the given columns for row r. An empty
// column list yields the empty key (single implicit group).
func keyOf(columns []table.Column, indices []int, r int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, ci := range indices {
		parts[i] = columns[ci].Cells[r].Display()
	}
	return strings.Join(parts, " / ")
}
