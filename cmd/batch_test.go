package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inquiries.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadBatchItems(t *testing.T) {
	path := writeInputFile(t, `{"id":"a1","text":"how do I restart a failed load?"}
{"text":"where does staging data land?","history":[{"role":"user","content":"earlier question"}]}
`)

	items, err := readBatchItems(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "how do I restart a failed load?", items[0].Text)

	// Missing IDs are filled in with a generated UUID.
	_, parseErr := uuid.Parse(items[1].ID)
	assert.NoError(t, parseErr)
	require.Len(t, items[1].History, 1)
	assert.Equal(t, "user", items[1].History[0].Role)
}

func TestReadBatchItemsSkipsMalformedLines(t *testing.T) {
	path := writeInputFile(t, `{"id":"ok","text":"valid question"}
{not json at all
{"id":"empty","text":""}

{"id":"ok2","text":"another valid question"}
`)

	items, err := readBatchItems(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ok", items[0].ID)
	assert.Equal(t, "ok2", items[1].ID)
}

func TestReadBatchItemsMissingFile(t *testing.T) {
	_, err := readBatchItems(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

func TestReadBatchItemsEmptyFile(t *testing.T) {
	path := writeInputFile(t, "")
	items, err := readBatchItems(path)
	require.NoError(t, err)
	assert.Empty(t, items)
}
