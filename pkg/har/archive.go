package har

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Version is the HAR format version this package produces.
const Version = "1.2"

// StdoutSink is the destination sentinel for the process's standard output.
const StdoutSink = "-"

// Archive accumulates entries for one proxy run and serializes them as
// a single HAR document. Add is safe for concurrent callers; Flush
// takes the same lock, so it orders after every Add that started before
// it and the flushed entry count is exact. The archive is one-shot:
// after the first Flush any further Flush returns ErrAlreadyFlushed.
type Archive struct {
	mu      sync.Mutex
	creator Creator
	entries []Entry
	flushed bool
}

// NewArchive creates an empty archive attributed to the given creator.
func NewArchive(creator Creator) *Archive {
	return &Archive{creator: creator}
}

// Add appends an entry in capture order. It never blocks on I/O, only
// on the internal lock.
func (a *Archive) Add(entry Entry) {
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.mu.Unlock()
}

// Len returns the number of entries added so far.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Snapshot returns a copy of the current document. It does not consume
// the one-shot flush; the web UI uses it for on-demand downloads.
func (a *Archive) Snapshot() HAR {
	a.mu.Lock()
	defer a.mu.Unlock()
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	return a.document(entries)
}

// Flush serializes the document to dest, a file path or StdoutSink.
// File writes go through a temp file and rename so a failed write never
// leaves a truncated document at dest. Entries stay in memory whatever
// the outcome; I/O failures wrap ErrSinkWrite, and any call after the
// first returns ErrAlreadyFlushed.
func (a *Archive) Flush(dest string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.flushed {
		return ErrAlreadyFlushed
	}
	a.flushed = true

	doc := a.document(a.entries)

	if dest == StdoutSink {
		if err := writeDocument(os.Stdout, doc); err != nil {
			return fmt.Errorf("%w: stdout: %v", ErrSinkWrite, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	if err := writeDocument(tmp, doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

func (a *Archive) document(entries []Entry) HAR {
	if entries == nil {
		entries = []Entry{}
	}
	return HAR{Log: Log{
		Version: Version,
		Creator: a.creator,
		Entries: entries,
	}}
}

func writeDocument(w io.Writer, doc HAR) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}
