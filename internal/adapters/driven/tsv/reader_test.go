package tsv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string) ([]Document, error) {
	t.Helper()
	var docs []Document
	err := Scan(strings.NewReader(input), func(d Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

func TestScan(t *testing.T) {
	docs, err := collect(t, "0\tfirst passage\n1\tsecond passage\tTitle\n\n2\tthird\r\n")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, Document{ID: "0", Text: "first passage"}, docs[0])
	assert.Equal(t, Document{ID: "1", Text: "second passage", Title: "Title"}, docs[1])
	assert.Equal(t, "third", docs[2].Text)
}

func TestScan_Header(t *testing.T) {
	docs, err := collect(t, "id\ttext\n7\tseven\n")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "7", docs[0].ID)
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing tab", "0 passage\n", "line 1"},
		{"empty pid", "0\tok\n\tpassage\n", "empty pid"},
		{"duplicate pid", "0\ta\n0\tb\n", "duplicate pid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadPassages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiki.tsv")
	require.NoError(t, os.WriteFile(path, []byte("0\talpha\n1\tbeta\n"), 0o644))

	passages, err := ReadPassages(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0": "alpha", "1": "beta"}, passages)

	_, err = ReadPassages(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}
