package addons

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidiego/hardump/pkg/filter"
	"github.com/fidiego/hardump/pkg/har"
	"github.com/fidiego/hardump/pkg/proxy"
)

func testExchange(method, path string, status int) *proxy.Exchange {
	ex := &proxy.Exchange{
		ID:       "ex-" + path,
		Upstream: "default",
		Request: &proxy.CapturedRequest{
			Method: method,
			URL:    "http://example.com" + path,
			Path:   path,
			Host:   "example.com",
			Proto:  "HTTP/1.1",
		},
		Response: &proxy.CapturedResponse{
			StatusCode: status,
			Proto:      "HTTP/1.1",
			Headers:    []proxy.Header{{Name: "Content-Type", Value: "text/plain"}},
			Body:       []byte("ok"),
		},
		State: proxy.ExchangeStateComplete,
	}
	ex.Timestamps.Created = time.Now().Add(-10 * time.Millisecond)
	ex.Timestamps.RequestDone = ex.Timestamps.Created.Add(time.Millisecond)
	ex.Timestamps.ResponseStart = ex.Timestamps.Created.Add(5 * time.Millisecond)
	ex.Timestamps.ResponseDone = ex.Timestamps.Created.Add(10 * time.Millisecond)
	return ex
}

func TestNewDumpAddonRequiresDestination(t *testing.T) {
	_, err := NewDumpAddon("", nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestDumpAddonRecordAndFinalize(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.har")
	d, err := NewDumpAddon(dest, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Record(testExchange("GET", "/a", 200)))
	require.NoError(t, d.Record(testExchange("POST", "/b", 201)))
	assert.Equal(t, 2, d.Archive().Len())

	require.NoError(t, d.Finalize())
	require.NoError(t, d.Err())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var doc har.HAR
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "1.2", doc.Log.Version)
	require.Len(t, doc.Log.Entries, 2)
	assert.Equal(t, "GET", doc.Log.Entries[0].Request.Method)
	assert.Equal(t, "POST", doc.Log.Entries[1].Request.Method)
}

func TestDumpAddonRecordAfterFinalize(t *testing.T) {
	d, err := NewDumpAddon(filepath.Join(t.TempDir(), "out.har"), nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Finalize())

	err = d.Record(testExchange("GET", "/late", 200))
	assert.ErrorIs(t, err, ErrFinalized)
	assert.Equal(t, 0, d.Archive().Len())
}

func TestDumpAddonDoubleFinalize(t *testing.T) {
	d, err := NewDumpAddon(filepath.Join(t.TempDir(), "out.har"), nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Finalize())
	assert.ErrorIs(t, d.Finalize(), har.ErrAlreadyFlushed)
}

func TestDumpAddonFilter(t *testing.T) {
	match, err := filter.Parse("~m POST")
	require.NoError(t, err)

	d, err := NewDumpAddon(filepath.Join(t.TempDir(), "out.har"), match, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Record(testExchange("GET", "/skip", 200)))
	require.NoError(t, d.Record(testExchange("POST", "/keep", 200)))

	assert.Equal(t, 1, d.Archive().Len())
	assert.Equal(t, 0, d.Dropped())
}

func TestDumpAddonMalformedExchange(t *testing.T) {
	d, err := NewDumpAddon(filepath.Join(t.TempDir(), "out.har"), nil, zerolog.Nop())
	require.NoError(t, err)

	bad := testExchange("GET", "/x", 200)
	bad.Response = nil

	err = d.Record(bad)
	assert.ErrorIs(t, err, har.ErrMalformedExchange)
	assert.Equal(t, 1, d.Dropped())

	// One bad exchange must not poison later recording.
	require.NoError(t, d.Record(testExchange("GET", "/y", 200)))
	assert.Equal(t, 1, d.Archive().Len())
}

func TestDumpAddonFlushFailureReported(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing-dir", "out.har")
	d, err := NewDumpAddon(dest, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Record(testExchange("GET", "/a", 200)))

	err = d.Finalize()
	assert.ErrorIs(t, err, har.ErrSinkWrite)
	assert.ErrorIs(t, d.Err(), har.ErrSinkWrite)

	// Entries stay in memory after a failed flush.
	assert.Equal(t, 1, d.Archive().Len())
}

func TestDumpAddonOnCompleteSwallowsErrors(t *testing.T) {
	d, err := NewDumpAddon(filepath.Join(t.TempDir(), "out.har"), nil, zerolog.Nop())
	require.NoError(t, err)

	bad := testExchange("GET", "/x", 200)
	bad.Response = nil

	// The hook logs instead of panicking; the error stays observable
	// through Dropped.
	d.OnComplete(bad)
	assert.Equal(t, 1, d.Dropped())
}
