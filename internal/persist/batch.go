package persist

import (
	"fmt"
	"strings"
)

// MaxBindParams is the effective per-statement bind-parameter ceiling. The
// backend allows 100; 80 leaves headroom for statement rewrites.
const MaxBindParams = 80

// BatchSizeFor returns how many rows of the given width fit in one statement.
func BatchSizeFor(columnsPerRow int) int {
	if columnsPerRow <= 0 {
		return 1
	}
	size := MaxBindParams / columnsPerRow
	if size < 1 {
		return 1
	}
	return size
}

// insertBuilder accumulates rows for a multi-row INSERT, flushing whenever
// adding the next row would push the statement past MaxBindParams.
type insertBuilder struct {
	table   string
	columns []string
	suffix  string // e.g. "ON CONFLICT DO NOTHING"

	args  []interface{}
	rows  int
	flush func(sql string, args []interface{}) error
}

func newInsertBuilder(table string, columns []string, suffix string, flush func(sql string, args []interface{}) error) *insertBuilder {
	return &insertBuilder{
		table:   table,
		columns: columns,
		suffix:  suffix,
		flush:   flush,
	}
}

// Add appends one row of values, flushing the pending statement first when
// the parameter pre-check says this row would not fit.
func (b *insertBuilder) Add(values ...interface{}) error {
	if len(values) != len(b.columns) {
		return fmt.Errorf("insert into %s: got %d values for %d columns", b.table, len(values), len(b.columns))
	}
	if len(b.args)+len(values) > MaxBindParams && b.rows > 0 {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	b.args = append(b.args, values...)
	b.rows++
	return nil
}

// Flush issues the pending statement, if any.
func (b *insertBuilder) Flush() error {
	if b.rows == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", b.table, strings.Join(b.columns, ", "))
	param := 1
	for row := 0; row < b.rows; row++ {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for col := range b.columns {
			if col > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", param)
			param++
		}
		sb.WriteByte(')')
	}
	if b.suffix != "" {
		sb.WriteByte(' ')
		sb.WriteString(b.suffix)
	}

	sql := sb.String()
	args := b.args
	b.args = nil
	b.rows = 0
	return b.flush(sql, args)
}
