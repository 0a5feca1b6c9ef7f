package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damir5/kosarica-sub000/internal/types"
)

func TestDiscoveredFileFromURL(t *testing.T) {
	t.Run("http url", func(t *testing.T) {
		f, err := discoveredFileFromURL("https://www.konzum.hr/cjenici/cjenik_0613.csv?v=2")
		require.NoError(t, err)
		assert.Equal(t, "cjenik_0613.csv", f.Filename)
		assert.Equal(t, types.FileTypeCSV, f.Type)
	})

	t.Run("local path becomes file url", func(t *testing.T) {
		f, err := discoveredFileFromURL("fixtures/Popis_cjenika.zip")
		require.NoError(t, err)
		assert.True(t, len(f.URL) > len("file://"))
		assert.Contains(t, f.URL, "file://")
		assert.Equal(t, "Popis_cjenika.zip", f.Filename)
		assert.Equal(t, types.FileTypeZIP, f.Type)
	})

	t.Run("file url kept as is", func(t *testing.T) {
		f, err := discoveredFileFromURL("file:///data/cjenik.xlsx")
		require.NoError(t, err)
		assert.Equal(t, "file:///data/cjenik.xlsx", f.URL)
		assert.Equal(t, types.FileTypeXLSX, f.Type)
	})

	t.Run("directory rejected", func(t *testing.T) {
		_, err := discoveredFileFromURL("file:///")
		assert.Error(t, err)
	})
}
