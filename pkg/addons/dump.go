// Package addons provides built-in proxy addons.
package addons

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fidiego/hardump/pkg/filter"
	"github.com/fidiego/hardump/pkg/har"
	"github.com/fidiego/hardump/pkg/proxy"
)

var (
	// ErrNoDestination means the dump addon was constructed without an
	// output destination. This is fatal at load time; the addon never
	// records without a valid sink.
	ErrNoDestination = errors.New("har dump: output destination is required")

	// ErrFinalized means an exchange arrived after Finalize. The host's
	// dispatch contract promises that never happens, so it is reported
	// as a violation rather than silently ignored.
	ErrFinalized = errors.New("har dump: exchange received after finalize")
)

// version is stamped into the archive's creator block.
const version = "0.1.0"

// dump addon lifecycle states.
type dumpState int

const (
	stateLoaded dumpState = iota // destination validated, nothing recorded yet
	stateRecording
	stateFinalized
)

// DumpAddon records every completed exchange into a HAR archive and
// flushes the archive exactly once at proxy teardown. Record runs on
// the connection handler's goroutine and never touches the sink; all
// I/O happens inside Finalize.
type DumpAddon struct {
	archive *har.Archive
	dest    string
	match   filter.Filter
	log     zerolog.Logger

	mu       sync.Mutex
	state    dumpState
	dropped  int
	flushErr error
}

// NewDumpAddon validates dest (a file path, or har.StdoutSink for
// standard output) and returns a loaded addon. match limits which
// exchanges are recorded; nil records everything.
func NewDumpAddon(dest string, match filter.Filter, logger zerolog.Logger) (*DumpAddon, error) {
	if dest == "" {
		return nil, ErrNoDestination
	}
	if match == nil {
		match = filter.MatchAll
	}
	return &DumpAddon{
		archive: har.NewArchive(har.Creator{Name: "hardump", Version: version}),
		dest:    dest,
		match:   match,
		log:     logger,
	}, nil
}

// Archive exposes the live archive for snapshot consumers (web UI, TUI).
func (d *DumpAddon) Archive() *har.Archive { return d.archive }

// OnComplete implements proxy.CompleteHook.
func (d *DumpAddon) OnComplete(ex *proxy.Exchange) {
	if err := d.Record(ex); err != nil {
		d.log.Error().Err(err).Str("exchange", ex.ID).Msg("har record failed")
	}
}

// Record builds an entry from ex and appends it to the archive.
// Malformed exchanges are skipped with a wrapped har.ErrMalformedExchange
// and do not stop later recording; exchanges delivered after Finalize
// return ErrFinalized. Filtered-out exchanges return nil.
func (d *DumpAddon) Record(ex *proxy.Exchange) error {
	d.mu.Lock()
	switch d.state {
	case stateFinalized:
		d.mu.Unlock()
		return ErrFinalized
	case stateLoaded:
		d.state = stateRecording
	}
	d.mu.Unlock()

	if !d.match(ex) {
		return nil
	}

	entry, err := har.BuildEntry(ex)
	if err != nil {
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		return fmt.Errorf("build entry: %w", err)
	}
	d.archive.Add(entry)
	return nil
}

// Finalize implements proxy.FinalizeHook. It flushes the archive to the
// configured destination, transitions to the terminal state, and
// reports (but does not retry) sink failures. The transition is
// irreversible; calling Finalize again returns har.ErrAlreadyFlushed.
func (d *DumpAddon) Finalize() error {
	d.mu.Lock()
	if d.state == stateFinalized {
		d.mu.Unlock()
		return har.ErrAlreadyFlushed
	}
	d.state = stateFinalized
	d.mu.Unlock()

	err := d.archive.Flush(d.dest)

	d.mu.Lock()
	d.flushErr = err
	dropped := d.dropped
	d.mu.Unlock()

	if err != nil {
		d.log.Error().Err(err).Str("dest", d.dest).Msg("har flush failed")
		return err
	}
	d.log.Info().Str("dest", d.dest).Int("entries", d.archive.Len()).
		Int("dropped", dropped).Msg("har archive written")
	return nil
}

// Err returns the flush outcome, nil before Finalize or on success.
func (d *DumpAddon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushErr
}

// Dropped returns how many malformed exchanges were skipped.
func (d *DumpAddon) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}
