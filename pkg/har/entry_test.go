package har

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidiego/hardump/pkg/proxy"
)

func completedExchange() *proxy.Exchange {
	ex := &proxy.Exchange{
		ID:       "test-1",
		Upstream: "default",
		Request: &proxy.CapturedRequest{
			Method: "GET",
			URL:    "http://example.com/path?a=1&b=2",
			Path:   "/path",
			Host:   "example.com",
			Proto:  "HTTP/1.1",
			Headers: []proxy.Header{
				{Name: "Accept", Value: "*/*"},
				{Name: "Cookie", Value: "session=abc"},
			},
		},
		Response: &proxy.CapturedResponse{
			StatusCode: 200,
			Proto:      "HTTP/1.1",
			Headers: []proxy.Header{
				{Name: "Content-Type", Value: "text/plain"},
				{Name: "Set-Cookie", Value: "token=xyz; HttpOnly"},
			},
			Body: []byte("hello"),
		},
		State: proxy.ExchangeStateComplete,
	}
	ex.Timestamps.Created = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ex.Timestamps.RequestDone = ex.Timestamps.Created.Add(5 * time.Millisecond)
	ex.Timestamps.ResponseStart = ex.Timestamps.Created.Add(45 * time.Millisecond)
	ex.Timestamps.ResponseDone = ex.Timestamps.Created.Add(50 * time.Millisecond)
	return ex
}

func TestBuildEntry(t *testing.T) {
	entry, err := BuildEntry(completedExchange())
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01T12:00:00.000Z", entry.StartedDateTime)
	assert.Equal(t, float64(50), entry.Time)

	assert.Equal(t, "GET", entry.Request.Method)
	assert.Equal(t, "http://example.com/path?a=1&b=2", entry.Request.URL)
	assert.Equal(t, "HTTP/1.1", entry.Request.HTTPVersion)
	assert.Equal(t, -1, entry.Request.HeadersSize)
	assert.Equal(t, 0, entry.Request.BodySize)
	assert.Nil(t, entry.Request.PostData)

	assert.Equal(t, 200, entry.Response.Status)
	assert.Equal(t, "OK", entry.Response.StatusText)
	assert.Equal(t, 5, entry.Response.BodySize)
	assert.Equal(t, "hello", entry.Response.Content.Text)
	assert.Equal(t, "text/plain", entry.Response.Content.MimeType)
	assert.Empty(t, entry.Response.RedirectURL)
}

func TestBuildEntryZeroDuration(t *testing.T) {
	// A degenerate exchange where everything happens at the same instant
	// still yields a valid entry with zero time.
	at := time.Unix(746203272, 0).UTC()
	ex := completedExchange()
	ex.Timestamps.Created = at
	ex.Timestamps.RequestDone = at
	ex.Timestamps.ResponseStart = at
	ex.Timestamps.ResponseDone = at

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	assert.Equal(t, float64(0), entry.Time)
	assert.Equal(t, at.Format("2006-01-02T15:04:05.000Z07:00"), entry.StartedDateTime)
	assert.Equal(t, float64(0), entry.Timings.Send)
	assert.Equal(t, float64(0), entry.Timings.Wait)
	assert.Equal(t, float64(0), entry.Timings.Receive)
}

func TestBuildEntryTimings(t *testing.T) {
	entry, err := BuildEntry(completedExchange())
	require.NoError(t, err)

	ti := entry.Timings
	assert.Equal(t, float64(-1), ti.Blocked)
	assert.Equal(t, float64(-1), ti.DNS)
	assert.Equal(t, float64(-1), ti.Connect)
	assert.Equal(t, float64(-1), ti.SSL)
	assert.Equal(t, float64(5), ti.Send)
	assert.Equal(t, float64(40), ti.Wait)
	assert.Equal(t, float64(5), ti.Receive)
}

func TestBuildEntryMissingPhaseTimestamps(t *testing.T) {
	ex := completedExchange()
	ex.Timestamps.ResponseStart = time.Time{}

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	assert.Equal(t, float64(0), entry.Timings.Send)
	assert.Equal(t, float64(0), entry.Timings.Wait)
	assert.Equal(t, float64(0), entry.Timings.Receive)
	assert.Equal(t, float64(-1), entry.Timings.Blocked)
}

func TestBuildEntryMalformed(t *testing.T) {
	ex := completedExchange()
	ex.Request = nil
	_, err := BuildEntry(ex)
	assert.ErrorIs(t, err, ErrMalformedExchange)

	ex = completedExchange()
	ex.Request.Method = ""
	_, err = BuildEntry(ex)
	assert.ErrorIs(t, err, ErrMalformedExchange)

	ex = completedExchange()
	ex.Response = nil
	_, err = BuildEntry(ex)
	assert.ErrorIs(t, err, ErrMalformedExchange)
}

func TestBuildEntryPure(t *testing.T) {
	ex := completedExchange()

	first, err := BuildEntry(ex)
	require.NoError(t, err)
	second, err := BuildEntry(ex)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "GET", ex.Request.Method) // input untouched
}

func TestBuildEntryHeaderOrderAndDuplicates(t *testing.T) {
	ex := completedExchange()
	ex.Response.Headers = []proxy.Header{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Set-Cookie", Value: "b=2"},
		{Name: "Vary", Value: "Accept"},
	}

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	require.Len(t, entry.Response.Headers, 3)
	assert.Equal(t, NameValue{Name: "Set-Cookie", Value: "a=1"}, entry.Response.Headers[0])
	assert.Equal(t, NameValue{Name: "Set-Cookie", Value: "b=2"}, entry.Response.Headers[1])

	require.Len(t, entry.Response.Cookies, 2)
	assert.Equal(t, "a", entry.Response.Cookies[0].Name)
	assert.Equal(t, "b", entry.Response.Cookies[1].Name)
}

func TestBuildEntryQueryStringOrder(t *testing.T) {
	ex := completedExchange()
	ex.Request.URL = "http://example.com/s?z=last&a=first&z=again"

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	require.Len(t, entry.Request.QueryString, 3)
	assert.Equal(t, NameValue{Name: "z", Value: "last"}, entry.Request.QueryString[0])
	assert.Equal(t, NameValue{Name: "a", Value: "first"}, entry.Request.QueryString[1])
	assert.Equal(t, NameValue{Name: "z", Value: "again"}, entry.Request.QueryString[2])
}

func TestBuildEntryRequestCookiesAndBody(t *testing.T) {
	ex := completedExchange()
	ex.Request.Method = "POST"
	ex.Request.Headers = []proxy.Header{
		{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		{Name: "Cookie", Value: "a=1; b=2"},
	}
	ex.Request.Body = []byte("field=value")

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	require.Len(t, entry.Request.Cookies, 2)
	assert.Equal(t, "a", entry.Request.Cookies[0].Name)
	assert.Equal(t, "b", entry.Request.Cookies[1].Name)

	require.NotNil(t, entry.Request.PostData)
	assert.Equal(t, "application/x-www-form-urlencoded", entry.Request.PostData.MimeType)
	assert.Equal(t, "field=value", entry.Request.PostData.Text)
	assert.Equal(t, 11, entry.Request.BodySize)
}

func TestBuildEntryRedirect(t *testing.T) {
	ex := completedExchange()
	ex.Response.StatusCode = 302
	ex.Response.Headers = []proxy.Header{
		{Name: "Location", Value: "https://example.com/next"},
	}

	entry, err := BuildEntry(ex)
	require.NoError(t, err)

	assert.Equal(t, 302, entry.Response.Status)
	assert.Equal(t, "Found", entry.Response.StatusText)
	assert.Equal(t, "https://example.com/next", entry.Response.RedirectURL)
}
