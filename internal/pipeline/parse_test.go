package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/damir5/kosarica-sub000/internal/types"
)

func TestGroupRowsByStore(t *testing.T) {
	rows := []types.NormalizedRow{
		{StoreIdentifier: "0613", Name: "a", Price: 100},
		{StoreIdentifier: "0613", Name: "b", Price: 200},
		{StoreIdentifier: "PJ50-1", Name: "c", Price: 300},
		{StoreIdentifier: "", Name: "d", Price: 400},
	}

	grouped := groupRowsByStore(rows)

	assert.Len(t, grouped, 3)
	assert.Len(t, grouped["0613"], 2)
	assert.Len(t, grouped["PJ50-1"], 1)
	assert.Len(t, grouped["unknown"], 1, "rows without an identifier fall back to unknown")
}

func TestSplitChunks(t *testing.T) {
	rows := make([]types.NormalizedRow, 10)
	for i := range rows {
		rows[i].RowNumber = i + 1
	}

	t.Run("even split", func(t *testing.T) {
		chunks := SplitChunks(rows, 5)
		assert.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 5)
		assert.Len(t, chunks[1], 5)
	})

	t.Run("remainder chunk", func(t *testing.T) {
		chunks := SplitChunks(rows, 4)
		assert.Len(t, chunks, 3)
		assert.Len(t, chunks[2], 2)
		assert.Equal(t, 9, chunks[2][0].RowNumber, "order preserved across chunks")
	})

	t.Run("chunk larger than input", func(t *testing.T) {
		chunks := SplitChunks(rows, 100)
		assert.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 10)
	})

	t.Run("disabled chunking", func(t *testing.T) {
		chunks := SplitChunks(rows, 0)
		assert.Len(t, chunks, 1)
	})
}
