package persist

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSizeFor(t *testing.T) {
	tests := []struct {
		columns  int
		expected int
	}{
		{1, 80},
		{4, 20},
		{11, 7},
		{17, 4},
		{80, 1},
		{81, 1}, // wider than the ceiling still gets one row
		{0, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d columns", tt.columns), func(t *testing.T) {
			assert.Equal(t, tt.expected, BatchSizeFor(tt.columns))
		})
	}
}

// TestInsertBuilderParamCeiling feeds more rows than fit in one statement and
// checks that no flushed statement binds more than MaxBindParams parameters.
func TestInsertBuilderParamCeiling(t *testing.T) {
	type statement struct {
		sql  string
		args []interface{}
	}
	var flushed []statement

	b := newInsertBuilder("things", []string{"a", "b", "c"}, "", func(sql string, args []interface{}) error {
		flushed = append(flushed, statement{sql, args})
		return nil
	})

	const rows = 100
	for i := 0; i < rows; i++ {
		require.NoError(t, b.Add(i, i*2, i*3))
	}
	require.NoError(t, b.Flush())

	total := 0
	for _, st := range flushed {
		assert.LessOrEqual(t, len(st.args), MaxBindParams)
		assert.Equal(t, strings.Count(st.sql, "$"), len(st.args))
		total += len(st.args) / 3
	}
	assert.Equal(t, rows, total, "every row must be flushed exactly once")

	// 3 columns -> 26 rows per statement -> 100 rows in 4 statements.
	assert.Len(t, flushed, 4)
}

func TestInsertBuilderSQLShape(t *testing.T) {
	var gotSQL string
	var gotArgs []interface{}

	b := newInsertBuilder("retailer_item_barcodes",
		[]string{"id", "retailer_item_id", "barcode", "is_primary"},
		"ON CONFLICT (retailer_item_id, barcode) DO NOTHING",
		func(sql string, args []interface{}) error {
			gotSQL = sql
			gotArgs = args
			return nil
		})

	require.NoError(t, b.Add("bc_1", "ritem_1", "3850102000012", true))
	require.NoError(t, b.Add("bc_2", "ritem_1", "3850102000029", false))
	require.NoError(t, b.Flush())

	assert.Equal(t,
		"INSERT INTO retailer_item_barcodes (id, retailer_item_id, barcode, is_primary) "+
			"VALUES ($1, $2, $3, $4), ($5, $6, $7, $8) "+
			"ON CONFLICT (retailer_item_id, barcode) DO NOTHING",
		gotSQL)
	assert.Len(t, gotArgs, 8)
}

func TestInsertBuilderColumnMismatch(t *testing.T) {
	b := newInsertBuilder("things", []string{"a", "b"}, "", func(string, []interface{}) error { return nil })
	err := b.Add(1)
	assert.Error(t, err)
}

func TestInsertBuilderEmptyFlush(t *testing.T) {
	calls := 0
	b := newInsertBuilder("things", []string{"a"}, "", func(string, []interface{}) error {
		calls++
		return nil
	})
	require.NoError(t, b.Flush())
	assert.Zero(t, calls, "flush without rows must not issue a statement")
}
