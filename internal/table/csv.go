package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes a header row with the column names followed by one record
// per table row.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(t.columns))
	for r := 0; r < t.height; r++ {
		for i := range t.columns {
			record[i] = t.formatCell(i, r)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (t *Table) formatCell(col, row int) string {
	c := &t.columns[col]
	switch c.dtype {
	case Int64:
		return strconv.FormatInt(c.int64s[row], 10)
	case Float64:
		return strconv.FormatFloat(c.float64s[row], 'f', -1, 64)
	case Int32:
		return strconv.FormatInt(int64(c.int32s[row]), 10)
	default:
		return ""
	}
}
