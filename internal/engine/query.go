package engine

import (
	"fmt"
	"strings"

	"tabchat/domain/table"
)

// describeDataset builds the human-readable answer to a Query operation:
// shape, per-column distinct counts (capped) and numeric/date ranges. It
// reads the current view without deriving a new one.
func describeDataset(ds *table.Dataset) string {
	summary := table.Summarize(ds)

	var b strings.Builder
	fmt.Fprintf(&b, "The current view has %d rows and %d columns.\n", summary.Rows, summary.Columns)

	for _, cs := range summary.ColumnStats {
		fmt.Fprintf(&b, "- %s (%s): ", cs.Name, cs.Type)

		distinct := fmt.Sprintf("%d distinct values", cs.DistinctCount)
		if cs.DistinctCapped {
			distinct = fmt.Sprintf("%d+ distinct values", table.DistinctCap)
		}
		b.WriteString(distinct)

		if cs.HasNumeric {
			fmt.Fprintf(&b, ", min %.4g, max %.4g, mean %.4g", cs.Min, cs.Max, cs.Mean)
			if cs.StdDev > 0 {
				fmt.Fprintf(&b, ", stddev %.4g", cs.StdDev)
			}
		}
		if cs.MinDate != "" {
			fmt.Fprintf(&b, ", from %s to %s", cs.MinDate, cs.MaxDate)
		}
		if cs.Missing > 0 {
			fmt.Fprintf(&b, ", %d missing", cs.Missing)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
