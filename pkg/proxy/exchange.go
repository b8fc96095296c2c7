package proxy

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// ExchangeState describes the current lifecycle stage of an Exchange.
type ExchangeState string

const (
	ExchangeStateActive      ExchangeState = "active"
	ExchangeStateIntercepted ExchangeState = "intercepted"
	ExchangeStateComplete    ExchangeState = "complete"
	ExchangeStateError       ExchangeState = "error"
)

// Header is a single header name/value pair. Exchanges carry headers as
// an ordered slice rather than a map so duplicate names and their
// relative order survive into the archive.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CapturedRequest holds a snapshot of an HTTP request.
type CapturedRequest struct {
	Method        string   `json:"method"`
	URL           string   `json:"url"`
	Path          string   `json:"path"`
	Host          string   `json:"host"`
	Headers       []Header `json:"headers"`
	Body          []byte   `json:"body,omitempty"`
	Proto         string   `json:"proto"`
	BodyTruncated bool     `json:"bodyTruncated,omitempty"`
}

// CapturedResponse holds a snapshot of an HTTP response.
type CapturedResponse struct {
	StatusCode    int      `json:"statusCode"`
	Headers       []Header `json:"headers"`
	Body          []byte   `json:"body,omitempty"`
	Proto         string   `json:"proto"`
	BodyTruncated bool     `json:"bodyTruncated,omitempty"`
}

// Exchange represents one complete request/response pair passing
// through the proxy. Addons receive it by pointer; request hooks may
// mutate the captured request before it is forwarded upstream.
type Exchange struct {
	ID       string `json:"id"`
	Upstream string `json:"upstream"` // name of the upstream that handled this

	Request  *CapturedRequest  `json:"request"`
	Response *CapturedResponse `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`

	State ExchangeState `json:"state"`
	Tags  []string      `json:"tags,omitempty"`

	Timestamps struct {
		Created       time.Time `json:"created"`
		RequestDone   time.Time `json:"requestDone"`
		ResponseStart time.Time `json:"responseStart,omitempty"`
		ResponseDone  time.Time `json:"responseDone,omitempty"`
	} `json:"timestamps"`

	// mu protects resumeCh and killed, used for intercept/resume.
	mu       sync.Mutex
	resumeCh chan struct{}
	killed   bool
}

// Duration returns elapsed time from exchange creation to response
// completion, or to now if the exchange is still in-flight.
func (ex *Exchange) Duration() time.Duration {
	if !ex.Timestamps.ResponseDone.IsZero() {
		return ex.Timestamps.ResponseDone.Sub(ex.Timestamps.Created)
	}
	return time.Since(ex.Timestamps.Created)
}

// Intercept pauses the exchange until Resume or Kill is called.
func (ex *Exchange) Intercept() {
	ex.mu.Lock()
	ex.State = ExchangeStateIntercepted
	ex.resumeCh = make(chan struct{})
	ex.mu.Unlock()
	<-ex.resumeCh
}

// Resume continues a paused (intercepted) exchange.
func (ex *Exchange) Resume() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.resumeCh != nil && !ex.killed {
		close(ex.resumeCh)
		ex.resumeCh = nil
	}
	ex.State = ExchangeStateActive
}

// Kill terminates an exchange; if it is intercepted it will be unblocked.
func (ex *Exchange) Kill() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.killed = true
	if ex.resumeCh != nil {
		close(ex.resumeCh)
		ex.resumeCh = nil
	}
	ex.State = ExchangeStateError
	ex.Error = "exchange killed"
}

// Get returns the first header value for name (case-insensitive), or "".
func Get(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Values returns every header value for name (case-insensitive), in order.
func Values(headers []Header, name string) []string {
	var out []string
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// Set replaces every header named name with a single value, appending
// if the name is not present.
func Set(headers []Header, name, value string) []Header {
	out := headers[:0]
	replaced := false
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			if !replaced {
				out = append(out, Header{Name: h.Name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, h)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// flattenHeader converts an http.Header map into an ordered slice.
// net/http folds the wire ordering into a map, so names are sorted for
// determinism; duplicate values keep their received order within a name.
func flattenHeader(h http.Header) []Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Header, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, Header{Name: name, Value: v})
		}
	}
	return out
}

// toHTTPHeader converts an ordered header slice back into an
// http.Header for forwarding.
func toHTTPHeader(headers []Header) http.Header {
	h := make(http.Header, len(headers))
	for _, hdr := range headers {
		h.Add(hdr.Name, hdr.Value)
	}
	return h
}

// ExchangeEventType describes the kind of change that occurred to an exchange.
type ExchangeEventType string

const (
	ExchangeEventNew      ExchangeEventType = "new"
	ExchangeEventUpdate   ExchangeEventType = "update"
	ExchangeEventComplete ExchangeEventType = "complete"
	ExchangeEventError    ExchangeEventType = "error"
)

// ExchangeEvent carries an exchange change notification to subscribers.
type ExchangeEvent struct {
	Type     ExchangeEventType `json:"type"`
	Exchange *Exchange         `json:"exchange"`
}
