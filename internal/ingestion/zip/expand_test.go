package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damir5/kosarica-sub000/internal/types"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExpandFanout(t *testing.T) {
	content := buildZip(t, map[string][]byte{
		"Supermarket 265_Prelog.csv":  []byte("NAZIV;CIJENA\nKruh;0,99"),
		"Supermarket 266_Cakovec.csv": []byte("NAZIV;CIJENA\nMlijeko;1,05"),
	})

	expanded, err := ExpandInMemory(content, "Popis.zip")
	require.NoError(t, err)
	require.Len(t, expanded, 2)

	names := []string{expanded[0].InnerFilename, expanded[1].InnerFilename}
	assert.ElementsMatch(t, []string{
		"Supermarket 265_Prelog.csv",
		"Supermarket 266_Cakovec.csv",
	}, names)

	for _, file := range expanded {
		assert.Equal(t, types.FileTypeCSV, file.Type)
		assert.NotEmpty(t, file.Hash)
		assert.Equal(t, int64(len(file.Content)), file.Size)
	}
}

func TestExpandSkipsSystemEntries(t *testing.T) {
	content := buildZip(t, map[string][]byte{
		"__MACOSX/._prices.csv": []byte("resource fork junk"),
		"._prices.csv":          []byte("resource fork junk"),
		".DS_Store":             []byte("junk"),
		"prices.csv":            []byte("NAZIV;CIJENA\nSir;3,49"),
	})

	expanded, err := ExpandInMemory(content, "archive.zip")
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "prices.csv", expanded[0].InnerFilename)
}

func TestExpandFiltersExtensions(t *testing.T) {
	content := buildZip(t, map[string][]byte{
		"prices.csv": []byte("NAZIV;CIJENA\nSir;3,49"),
		"readme.txt": []byte("ignore me"),
		"script.exe": []byte("nope"),
	})

	expanded, err := ExpandInMemory(content, "archive.zip")
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "prices.csv", expanded[0].InnerFilename)
}

func TestExpandFlattensNestedPaths(t *testing.T) {
	content := buildZip(t, map[string][]byte{
		"cjenici/2026/prices.csv": []byte("NAZIV;CIJENA\nSir;3,49"),
	})

	expanded, err := ExpandInMemory(content, "archive.zip")
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "prices.csv", expanded[0].InnerFilename)
}

func TestExpandRejectsOversizedEntry(t *testing.T) {
	content := buildZip(t, map[string][]byte{
		"big.csv": bytes.Repeat([]byte("a"), 2048),
	})

	opts := DefaultExpandOptions()
	opts.MaxFileSize = 1024
	expander := NewExpander(nil, opts)

	_, err := expander.Expand(context.Background(), content, "archive.zip")
	assert.Error(t, err)
}

func TestExpandEnforcesFileCountLimit(t *testing.T) {
	entries := map[string][]byte{
		"a.csv": []byte("x"),
		"b.csv": []byte("y"),
		"c.csv": []byte("z"),
	}
	content := buildZip(t, entries)

	opts := DefaultExpandOptions()
	opts.MaxFiles = 2
	expander := NewExpander(nil, opts)

	_, err := expander.Expand(context.Background(), content, "archive.zip")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{name: "plain name", input: "prices.csv", expected: "prices.csv"},
		{name: "nested path flattened", input: "dir/sub/prices.csv", expected: "prices.csv"},
		{name: "backslash path flattened", input: `dir\prices.csv`, expected: "prices.csv"},
		{name: "absolute path rejected", input: "/etc/passwd", expectErr: true},
		{name: "traversal rejected", input: "../../escape.csv", expectErr: true},
		{name: "drive letter rejected", input: `C:\evil.csv`, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeFilename(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpandInvalidArchive(t *testing.T) {
	_, err := ExpandInMemory([]byte("this is not a zip"), "broken.zip")
	assert.Error(t, err)
}
