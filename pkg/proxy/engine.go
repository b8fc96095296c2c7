package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type contextKey string

const (
	exchangeContextKey contextKey = "exchange"
	hostOverrideKey    contextKey = "hostOverride"
)

// Engine is the core proxy. It routes requests to upstreams, captures
// exchanges, and dispatches them through the addon pipeline. Exchange
// hooks fire on the connection's own goroutine, so addons must be safe
// for concurrent invocation.
type Engine struct {
	store   *Store
	addons  *AddonManager
	router  *Router
	proxies map[string]*httputil.ReverseProxy
	opts    Options
	server  *http.Server
}

// New creates a new Engine with the given options.
func New(opts Options) (*Engine, error) {
	opts.setDefaults()

	router, err := NewRouter(opts.Upstreams)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:   NewStore(opts.MaxStore),
		addons:  NewAddonManager(),
		router:  router,
		proxies: make(map[string]*httputil.ReverseProxy),
		opts:    opts,
	}

	for i := range router.upstreams {
		u := &router.upstreams[i]
		p := &httputil.ReverseProxy{
			Director:       Director(u),
			ModifyResponse: e.modifyResponse,
			ErrorHandler:   e.errorHandler,
			FlushInterval:  -1, // flush immediately for streaming support
		}
		e.proxies[u.Name] = p
	}

	return e, nil
}

// Options returns the resolved options the engine was started with.
func (e *Engine) Options() Options { return e.opts }

// Store returns the exchange store (read-only access for UI components).
func (e *Engine) Store() *Store { return e.store }

// Addons returns the addon manager so callers can register addons.
func (e *Engine) Addons() *AddonManager { return e.addons }

// Router returns the router (for UI display of configured upstreams).
func (e *Engine) Router() *Router { return e.router }

// Start runs the proxy until ctx is cancelled, then shuts the listener
// down gracefully so in-flight exchanges complete before Finalize fires.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	e.server = &http.Server{
		Addr:    e.opts.ListenAddr,
		Handler: e,
	}

	g.Go(func() error {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("proxy server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.server.Shutdown(shutCtx)
		return nil
	})

	return g.Wait()
}

// ServeHTTP implements http.Handler. It is the main proxy entry point.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream := e.router.Match(r)
	if upstream == nil {
		http.Error(w, "no upstream matched", http.StatusBadGateway)
		return
	}

	ex := e.newExchange(r, upstream)
	e.store.Add(ex)

	if err := captureRequestBody(ex, r, e.opts.MaxBodySize); err != nil {
		ex.State = ExchangeStateError
		ex.Error = fmt.Sprintf("capture request: %v", err)
		e.opts.Logger.Error().Err(err).Str("exchange", ex.ID).Msg("request capture failed")
		e.store.Update(ex, ExchangeEventError)
		http.Error(w, "internal proxy error", http.StatusInternalServerError)
		return
	}

	ex.Timestamps.RequestDone = time.Now()

	origHost := ex.Request.Host
	e.addons.FireRequest(ex)

	if ex.killed {
		http.Error(w, "exchange killed", http.StatusBadGateway)
		return
	}

	// Apply addon mutations to the outgoing request.
	r = applyRequest(ex, r, origHost)

	// Attach the exchange to the request context so modifyResponse can find it.
	r = r.WithContext(context.WithValue(r.Context(), exchangeContextKey, ex))

	proxy, ok := e.proxies[upstream.Name]
	if !ok {
		http.Error(w, "upstream not configured", http.StatusBadGateway)
		return
	}
	proxy.ServeHTTP(w, r)
}

// applyRequest writes the (possibly addon-mutated) captured request
// back onto the outgoing *http.Request. When an addon changed the host,
// a context override is set so the director routes to the new host
// instead of the matched upstream.
func applyRequest(ex *Exchange, r *http.Request, origHost string) *http.Request {
	r.Method = ex.Request.Method
	r.Header = toHTTPHeader(ex.Request.Headers)
	if u := ex.Request.URL; u != "" && u != r.URL.String() {
		if parsed, err := r.URL.Parse(u); err == nil {
			r.URL = parsed
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(ex.Request.Body))
	r.ContentLength = int64(len(ex.Request.Body))

	if ex.Request.Host != origHost {
		r.Host = ex.Request.Host
		r = r.WithContext(context.WithValue(r.Context(), hostOverrideKey, ex.Request.Host))
	}
	return r
}

// modifyResponse is called by the reverse proxy with the upstream response.
func (e *Engine) modifyResponse(resp *http.Response) error {
	ex, ok := resp.Request.Context().Value(exchangeContextKey).(*Exchange)
	if !ok {
		return nil
	}

	ex.Timestamps.ResponseStart = time.Now()

	if err := captureResponseBody(ex, resp, e.opts.MaxBodySize); err != nil {
		// Don't fail the proxy; just mark the body capture as failed.
		e.opts.Logger.Warn().Err(err).Str("exchange", ex.ID).Msg("response capture failed")
		ex.Response.Body = nil
		ex.Response.BodyTruncated = true
	}

	ex.Timestamps.ResponseDone = time.Now()
	ex.State = ExchangeStateComplete

	e.addons.FireResponse(ex)

	// Apply addon mutations to the outgoing response.
	resp.Header = toHTTPHeader(ex.Response.Headers)
	resp.Body = io.NopCloser(bytes.NewReader(ex.Response.Body))
	resp.ContentLength = int64(len(ex.Response.Body))

	e.addons.FireComplete(ex)
	e.store.Update(ex, ExchangeEventComplete)

	return nil
}

// errorHandler is called by the reverse proxy when the upstream is unreachable.
func (e *Engine) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ex, ok := r.Context().Value(exchangeContextKey).(*Exchange)
	if ok {
		ex.State = ExchangeStateError
		ex.Error = err.Error()
		ex.Timestamps.ResponseDone = time.Now()
		e.opts.Logger.Error().Err(err).Str("exchange", ex.ID).Msg("upstream error")
		e.addons.FireError(ex, err)
		e.store.Update(ex, ExchangeEventError)
	}
	http.Error(w, fmt.Sprintf("upstream error: %v", err), http.StatusBadGateway)
}

// newExchange builds an Exchange skeleton from the incoming request.
func (e *Engine) newExchange(r *http.Request, upstream *Upstream) *Exchange {
	ex := &Exchange{
		ID:       uuid.New().String(),
		Upstream: upstream.Name,
		State:    ExchangeStateActive,
	}
	ex.Timestamps.Created = time.Now()
	ex.Request = &CapturedRequest{
		Method:  r.Method,
		URL:     r.URL.String(),
		Path:    r.URL.Path,
		Host:    r.Host,
		Headers: flattenHeader(r.Header),
		Proto:   r.Proto,
	}
	return ex
}

// Replay re-sends the request from a captured exchange through the
// proxy engine. The replayed exchange is stored as a new entry,
// traverses the addon pipeline like live traffic, and is returned.
func (e *Engine) Replay(exchangeID string) (*Exchange, error) {
	original := e.store.Get(exchangeID)
	if original == nil {
		return nil, fmt.Errorf("exchange %q not found", exchangeID)
	}
	if original.Request == nil {
		return nil, fmt.Errorf("exchange %q has no captured request", exchangeID)
	}

	req, err := rebuildRequest(original.Request)
	if err != nil {
		return nil, fmt.Errorf("rebuild request: %w", err)
	}

	upstream := e.router.Match(req)
	if upstream == nil {
		return nil, fmt.Errorf("no upstream for path %q", req.URL.Path)
	}

	ex := e.newExchange(req, upstream)
	ex.Tags = append(ex.Tags, "replay", "replay:"+exchangeID)
	ex.Request = cloneRequest(original.Request)
	e.store.Add(ex)

	// Forward via the upstream proxy, capturing response into a recorder.
	rec := &responseRecorder{header: make(http.Header), code: 200}
	req = req.WithContext(context.WithValue(req.Context(), exchangeContextKey, ex))
	proxy, ok := e.proxies[upstream.Name]
	if !ok {
		return nil, fmt.Errorf("upstream %q not configured", upstream.Name)
	}
	proxy.ServeHTTP(rec, req)

	return e.store.Get(ex.ID), nil
}

// captureRequestBody reads up to maxBytes of the request body and stores it on the exchange.
func captureRequestBody(ex *Exchange, r *http.Request, maxBytes int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	body, truncated, err := readLimited(r.Body, maxBytes)
	if err != nil {
		return err
	}
	// Replace r.Body so the reverse proxy can still read it.
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))

	ex.Request.Body = body
	ex.Request.BodyTruncated = truncated
	return nil
}

// captureResponseBody reads up to maxBytes of the response body and stores it on the exchange.
func captureResponseBody(ex *Exchange, resp *http.Response, maxBytes int64) error {
	captured := &CapturedResponse{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
		Proto:      resp.Proto,
	}
	ex.Response = captured

	if resp.Body == nil {
		return nil
	}

	body, truncated, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return err
	}

	captured.Body = body
	captured.BodyTruncated = truncated
	return nil
}

// readLimited reads at most maxBytes from r, then closes r.
// Returns the bytes read and whether the source had more data (truncated).
func readLimited(r io.ReadCloser, maxBytes int64) ([]byte, bool, error) {
	defer r.Close()
	limit := maxBytes + 1
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > maxBytes {
		return data[:maxBytes], true, nil
	}
	return data, false, nil
}

// rebuildRequest constructs a new *http.Request from a CapturedRequest.
func rebuildRequest(cr *CapturedRequest) (*http.Request, error) {
	req, err := http.NewRequest(cr.Method, cr.URL, bytes.NewReader(cr.Body))
	if err != nil {
		return nil, err
	}
	for _, h := range cr.Headers {
		req.Header.Add(h.Name, h.Value)
	}
	return req, nil
}

// cloneRequest returns a copy of a CapturedRequest (with copies of the
// body and header slices, so replay mutations never touch the original).
func cloneRequest(cr *CapturedRequest) *CapturedRequest {
	body := make([]byte, len(cr.Body))
	copy(body, cr.Body)
	headers := make([]Header, len(cr.Headers))
	copy(headers, cr.Headers)
	return &CapturedRequest{
		Method:        cr.Method,
		URL:           cr.URL,
		Path:          cr.Path,
		Host:          cr.Host,
		Headers:       headers,
		Body:          body,
		Proto:         cr.Proto,
		BodyTruncated: cr.BodyTruncated,
	}
}

// responseRecorder is a minimal http.ResponseWriter used for internal replay.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func (r *responseRecorder) Header() http.Header         { return r.header }
func (r *responseRecorder) WriteHeader(code int)        { r.code = code }
func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }
