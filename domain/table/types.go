package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellType classifies the value held by a cell
type CellType string

const (
	TypeString CellType = "string"
	TypeNumber CellType = "number"
	TypeDate   CellType = "date"
	TypeBool   CellType = "boolean"
	TypeEmpty  CellType = "empty"
)

// Cell is a single typed value. Exactly one of the value fields is
// meaningful, selected by Type.
type Cell struct {
	Type CellType
	Str  string
	Num  float64
	Time time.Time
	Bool bool
}

func StringCell(s string) Cell  { return Cell{Type: TypeString, Str: s} }
func NumberCell(f float64) Cell { return Cell{Type: TypeNumber, Num: f} }
func DateCell(t time.Time) Cell { return Cell{Type: TypeDate, Time: t} }
func BoolCell(b bool) Cell      { return Cell{Type: TypeBool, Bool: b} }
func EmptyCell() Cell           { return Cell{Type: TypeEmpty} }

// IsEmpty reports whether the cell holds no value
func (c Cell) IsEmpty() bool {
	return c.Type == TypeEmpty
}

// Display returns the human-readable form of the cell value
func (c Cell) Display() string {
	switch c.Type {
	case TypeString:
		return c.Str
	case TypeNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case TypeDate:
		return c.Time.Format("2006-01-02")
	case TypeBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// Equal compares two cells for filter/dedupe purposes. String comparison is
// case-insensitive to match how users reference categorical values in chat.
func (c Cell) Equal(other Cell) bool {
	if c.Type != other.Type {
		// Mixed-type columns fall back to display comparison
		return strings.EqualFold(c.Display(), other.Display())
	}
	switch c.Type {
	case TypeString:
		return strings.EqualFold(c.Str, other.Str)
	case TypeNumber:
		return c.Num == other.Num
	case TypeDate:
		return c.Time.Equal(other.Time)
	case TypeBool:
		return c.Bool == other.Bool
	default:
		return true // both empty
	}
}

// Compare orders two cells: -1 if c < other, 0 if equal, 1 if c > other.
// Empty cells sort before everything else.
func (c Cell) Compare(other Cell) int {
	if c.IsEmpty() || other.IsEmpty() {
		switch {
		case c.IsEmpty() && other.IsEmpty():
			return 0
		case c.IsEmpty():
			return -1
		default:
			return 1
		}
	}
	if c.Type == TypeNumber && other.Type == TypeNumber {
		switch {
		case c.Num < other.Num:
			return -1
		case c.Num > other.Num:
			return 1
		default:
			return 0
		}
	}
	if c.Type == TypeDate && other.Type == TypeDate {
		switch {
		case c.Time.Before(other.Time):
			return -1
		case c.Time.After(other.Time):
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(c.Display()), strings.ToLower(other.Display()))
}

// Column is a named, ordered sequence of cells. Type is the dominant
// inferred type of its non-empty cells.
type Column struct {
	Name  string
	Type  CellType
	Cells []Cell
}

// ColumnSchema describes a column for NLU context and validation
type ColumnSchema struct {
	Name string   `json:"name"`
	Type CellType `json:"type"`
}

func (s ColumnSchema) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Type)
}
