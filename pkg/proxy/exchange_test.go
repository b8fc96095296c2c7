package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderGet(t *testing.T) {
	headers := []Header{
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "X-Multi", Value: "one"},
		{Name: "X-Multi", Value: "two"},
	}

	assert.Equal(t, "text/plain", Get(headers, "Content-Type"))
	assert.Equal(t, "text/plain", Get(headers, "content-type"))
	assert.Equal(t, "one", Get(headers, "X-Multi")) // first value wins
	assert.Empty(t, Get(headers, "Missing"))
}

func TestHeaderValues(t *testing.T) {
	headers := []Header{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Vary", Value: "Accept"},
		{Name: "set-cookie", Value: "b=2"},
	}

	assert.Equal(t, []string{"a=1", "b=2"}, Values(headers, "Set-Cookie"))
	assert.Nil(t, Values(headers, "Missing"))
}

func TestHeaderSet(t *testing.T) {
	headers := []Header{
		{Name: "X-A", Value: "old"},
		{Name: "X-B", Value: "keep"},
	}

	out := Set(headers, "x-a", "new")
	assert.Equal(t, "new", Get(out, "X-A"))
	assert.Equal(t, "keep", Get(out, "X-B"))

	out = Set(out, "X-C", "added")
	assert.Equal(t, "added", Get(out, "X-C"))
	assert.Len(t, out, 3)
}

func TestFlattenHeaderOrdering(t *testing.T) {
	h := http.Header{}
	h.Add("Zebra", "z")
	h.Add("Alpha", "a1")
	h.Add("Alpha", "a2")

	flat := flattenHeader(h)

	// Names come out sorted; values under one name keep their order.
	require.Len(t, flat, 3)
	assert.Equal(t, Header{Name: "Alpha", Value: "a1"}, flat[0])
	assert.Equal(t, Header{Name: "Alpha", Value: "a2"}, flat[1])
	assert.Equal(t, Header{Name: "Zebra", Value: "z"}, flat[2])
}

func TestToHTTPHeaderRoundTrip(t *testing.T) {
	headers := []Header{
		{Name: "X-One", Value: "1"},
		{Name: "X-Two", Value: "2a"},
		{Name: "X-Two", Value: "2b"},
	}

	h := toHTTPHeader(headers)
	assert.Equal(t, "1", h.Get("X-One"))
	assert.Equal(t, []string{"2a", "2b"}, h.Values("X-Two"))
}

func TestExchangeKill(t *testing.T) {
	ex := &Exchange{ID: "k", State: ExchangeStateActive}
	ex.Kill()

	assert.Equal(t, ExchangeStateError, ex.State)
	assert.True(t, ex.killed)
}
