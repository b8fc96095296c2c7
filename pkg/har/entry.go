package har

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/fidiego/hardump/pkg/proxy"
)

// startedDateTimeFormat is RFC 3339 with millisecond precision, the
// timestamp form HAR consumers expect.
const startedDateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// BuildEntry composes one archive entry from one completed exchange.
// It is pure: the exchange is only read, never mutated, and identical
// input always yields an identical entry. It fails only when a
// structurally required field (request method, response) is absent,
// wrapping ErrMalformedExchange.
func BuildEntry(ex *proxy.Exchange) (Entry, error) {
	if ex.Request == nil || ex.Request.Method == "" {
		return Entry{}, fmt.Errorf("%w: no request method", ErrMalformedExchange)
	}
	if ex.Response == nil {
		return Entry{}, fmt.Errorf("%w: no response", ErrMalformedExchange)
	}

	entry := Entry{
		StartedDateTime: ex.Timestamps.Created.Format(startedDateTimeFormat),
		Time:            elapsedMillis(ex.Timestamps.Created, ex.Timestamps.ResponseDone),
		Request:         buildRequest(ex.Request),
		Response:        buildResponse(ex.Response),
		Timings:         buildTimings(ex),
	}
	return entry, nil
}

func buildRequest(req *proxy.CapturedRequest) Request {
	return Request{
		Method:      req.Method,
		URL:         req.URL,
		HTTPVersion: req.Proto,
		Cookies:     requestCookies(req.Headers),
		Headers:     buildHeaders(req.Headers),
		QueryString: buildQueryString(req.URL),
		PostData:    EncodePostData(proxy.Get(req.Headers, "Content-Type"), req.Body),
		HeadersSize: -1,
		BodySize:    len(req.Body),
	}
}

// elapsedMillis returns end-start in rounded milliseconds, clamped to
// zero for a malformed exchange whose end precedes its start.
func elapsedMillis(start, end time.Time) float64 {
	ms := math.Round(end.Sub(start).Seconds() * 1000)
	if ms < 0 {
		return 0
	}
	return ms
}

// buildTimings splits the entry total into send/wait/receive using the
// engine's phase timestamps. Phases the proxy does not measure
// (blocked, dns, connect, ssl) are -1. When a phase timestamp is
// missing the placeholder zero-phase block is emitted instead.
func buildTimings(ex *proxy.Exchange) Timings {
	t := Timings{Blocked: -1, DNS: -1, Connect: -1, SSL: -1}
	ts := ex.Timestamps
	if ts.RequestDone.IsZero() || ts.ResponseStart.IsZero() || ts.ResponseDone.IsZero() {
		return t
	}
	t.Send = elapsedMillis(ts.Created, ts.RequestDone)
	t.Wait = elapsedMillis(ts.RequestDone, ts.ResponseStart)
	t.Receive = elapsedMillis(ts.ResponseStart, ts.ResponseDone)
	return t
}

// buildHeaders flattens a captured header list, preserving order and
// duplicates.
func buildHeaders(headers []proxy.Header) []NameValue {
	out := make([]NameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, NameValue{Name: h.Name, Value: h.Value})
	}
	return out
}

// buildQueryString parses a raw query into ordered name/value pairs.
// url.Values is a map and would shuffle them.
func buildQueryString(rawURL string) []NameValue {
	out := []NameValue{}
	raw := ""
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		raw = rawURL[i+1:]
	}
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		name, value := splitPair(pair)
		out = append(out, NameValue{Name: name, Value: value})
	}
	return out
}

func requestCookies(headers []proxy.Header) []Cookie {
	var parsed []CookieAttrs
	for _, v := range proxy.Values(headers, "Cookie") {
		parsed = append(parsed, ParseCookiePairs(v)...)
	}
	return FormatCookies(parsed)
}

func responseCookies(headers []proxy.Header) []Cookie {
	var parsed []CookieAttrs
	for _, v := range proxy.Values(headers, "Set-Cookie") {
		parsed = append(parsed, ParseSetCookie(v))
	}
	return FormatCookies(parsed)
}

func buildResponse(resp *proxy.CapturedResponse) Response {
	return Response{
		Status:      resp.StatusCode,
		StatusText:  http.StatusText(resp.StatusCode),
		HTTPVersion: resp.Proto,
		Cookies:     responseCookies(resp.Headers),
		Headers:     buildHeaders(resp.Headers),
		Content:     EncodeContent(proxy.Get(resp.Headers, "Content-Type"), resp.Body),
		RedirectURL: proxy.Get(resp.Headers, "Location"),
		HeadersSize: -1,
		BodySize:    len(resp.Body),
	}
}
