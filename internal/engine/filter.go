package engine

import (
	"fmt"
	"strings"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/internal/errors"
)

// applyFilter keeps the rows matching the predicate. The column set is
// unchanged; the result is always a row subset of the input.
func applyFilter(f chat.FilterOp, ds *table.Dataset) (*table.Dataset, error) {
	idx, ok := ds.FindColumn(f.Column)
	if !ok {
		return nil, errors.OperationError(fmt.Sprintf("column %q not found", f.Column))
	}
	col := ds.Columns()[idx]

	pred, err := buildPredicate(f, col)
	if err != nil {
		return nil, err
	}

	var keep []int
	for r, cell := range col.Cells {
		if pred(cell) {
			keep = append(keep, r)
		}
	}
	return ds.SelectRows(keep), nil
}

func buildPredicate(f chat.FilterOp, col table.Column) (func(table.Cell) bool, error) {
	switch f.Operator {
	case chat.OpEquals, chat.OpNotEquals:
		target := coerceOrString(f.Value, col.Type)
		eq := func(c table.Cell) bool { return !c.IsEmpty() && c.Equal(target) }
		if f.Operator == chat.OpNotEquals {
			return func(c table.Cell) bool { return !c.IsEmpty() && !c.Equal(target) }, nil
		}
		return eq, nil

	case chat.OpContains:
		needle := strings.ToLower(f.Value)
		return func(c table.Cell) bool {
			return !c.IsEmpty() && strings.Contains(strings.ToLower(c.Display()), needle)
		}, nil

	case chat.OpGreaterThan, chat.OpLessThan:
		target, err := table.CoerceLiteral(f.Value, col.Type)
		if err != nil {
			return nil, errors.OperationError(fmt.Sprintf("cannot compare column %q with %q: %v", col.Name, f.Value, err))
		}
		if f.Operator == chat.OpGreaterThan {
			return func(c table.Cell) bool { return !c.IsEmpty() && c.Compare(target) > 0 }, nil
		}
		return func(c table.Cell) bool { return !c.IsEmpty() && c.Compare(target) < 0 }, nil

	case chat.OpInSet:
		targets := make([]table.Cell, len(f.Values))
		for i, v := range f.Values {
			targets[i] = coerceOrString(v, col.Type)
		}
		return func(c table.Cell) bool {
			if c.IsEmpty() {
				return false
			}
			for _, t := range targets {
				if c.Equal(t) {
					return true
				}
			}
			return false
		}, nil

	default:
		return nil, errors.OperationError(fmt.Sprintf("unsupported operator %q", f.Operator))
	}
}

// coerceOrString coerces a literal to the column type, falling back to a
// string cell so equality still works via display comparison.
func coerceOrString(value string, t table.CellType) table.Cell {
	if cell, err := table.CoerceLiteral(value, t); err == nil {
		return cell
	}
	return table.StringCell(value)
}
