package har

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreator() Creator {
	return Creator{Name: "hardump", Version: "test"}
}

func TestArchiveConcurrentAdd(t *testing.T) {
	a := NewArchive(testCreator())

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				a.Add(Entry{StartedDateTime: fmt.Sprintf("w%d-%d", w, i)})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, a.Len())
}

func TestArchiveFlushToFile(t *testing.T) {
	a := NewArchive(testCreator())
	a.Add(Entry{StartedDateTime: "2026-08-01T12:00:00.000Z"})
	a.Add(Entry{StartedDateTime: "2026-08-01T12:00:01.000Z"})

	dest := filepath.Join(t.TempDir(), "out.har")
	require.NoError(t, a.Flush(dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	var doc HAR
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "1.2", doc.Log.Version)
	assert.Equal(t, "hardump", doc.Log.Creator.Name)
	require.Len(t, doc.Log.Entries, 2)
	assert.Equal(t, "2026-08-01T12:00:00.000Z", doc.Log.Entries[0].StartedDateTime)
}

func TestArchiveFlushEmpty(t *testing.T) {
	a := NewArchive(testCreator())

	dest := filepath.Join(t.TempDir(), "empty.har")
	require.NoError(t, a.Flush(dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	// entries must be [] in the document, never null.
	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, "[]", string(raw["log"]["entries"]))
}

func TestArchiveDoubleFlush(t *testing.T) {
	a := NewArchive(testCreator())
	a.Add(Entry{})

	dest := filepath.Join(t.TempDir(), "once.har")
	require.NoError(t, a.Flush(dest))

	err := a.Flush(dest)
	assert.ErrorIs(t, err, ErrAlreadyFlushed)

	// Entries survive the flush either way.
	assert.Equal(t, 1, a.Len())
}

func TestArchiveFlushBadDirectory(t *testing.T) {
	a := NewArchive(testCreator())

	err := a.Flush(filepath.Join(t.TempDir(), "missing", "out.har"))
	assert.ErrorIs(t, err, ErrSinkWrite)
}

func TestArchiveSnapshotDoesNotConsumeFlush(t *testing.T) {
	a := NewArchive(testCreator())
	a.Add(Entry{StartedDateTime: "x"})

	snap := a.Snapshot()
	assert.Equal(t, "1.2", snap.Log.Version)
	require.Len(t, snap.Log.Entries, 1)

	// Snapshot is a copy; later adds don't leak into it.
	a.Add(Entry{StartedDateTime: "y"})
	assert.Len(t, snap.Log.Entries, 1)

	dest := filepath.Join(t.TempDir(), "snap.har")
	require.NoError(t, a.Flush(dest))
}

func TestArchiveFlushFailedWriteLeavesNoFile(t *testing.T) {
	a := NewArchive(testCreator())
	a.Add(Entry{})

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out.har")
	require.Error(t, a.Flush(dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}
