package addons

import (
	"net/url"
	"strings"

	"github.com/fidiego/hardump/pkg/proxy"
)

// The rewrite addons are stateless single-field mutations, each safe to
// run concurrently because it only touches the exchange it was handed.

// HeaderAddon injects a fixed header into every response.
type HeaderAddon struct {
	Name  string
	Value string
}

func (a *HeaderAddon) OnResponse(ex *proxy.Exchange) {
	if ex.Response == nil {
		return
	}
	ex.Response.Headers = append(ex.Response.Headers, proxy.Header{Name: a.Name, Value: a.Value})
}

// QueryAddon forces a query parameter onto every request URL.
type QueryAddon struct {
	Key   string
	Value string
}

func (a *QueryAddon) OnRequest(ex *proxy.Exchange) {
	u, err := url.Parse(ex.Request.URL)
	if err != nil {
		return
	}
	q := u.Query()
	q.Set(a.Key, a.Value)
	u.RawQuery = q.Encode()
	ex.Request.URL = u.String()
}

// FormAddon rewrites urlencoded request forms. When the request carries
// a form it sets Field=Value alongside the existing fields; otherwise
// it replaces the body with a form containing only that pair.
type FormAddon struct {
	Field string
	Value string
}

func (a *FormAddon) OnRequest(ex *proxy.Exchange) {
	ct := proxy.Get(ex.Request.Headers, "Content-Type")
	if strings.Contains(strings.ToLower(ct), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(ex.Request.Body))
		if err != nil {
			form = url.Values{}
		}
		form.Set(a.Field, a.Value)
		ex.Request.Body = []byte(form.Encode())
		return
	}
	ex.Request.Body = []byte(url.Values{a.Field: {a.Value}}.Encode())
	ex.Request.Headers = proxy.Set(ex.Request.Headers, "Content-Type", "application/x-www-form-urlencoded")
}

// RedirectAddon reroutes requests for one host to another. The engine
// honours the rewritten host over the matched upstream's target.
type RedirectAddon struct {
	From string
	To   string
}

func (a *RedirectAddon) OnRequest(ex *proxy.Exchange) {
	if !strings.EqualFold(hostOnly(ex.Request.Host), a.From) {
		return
	}
	ex.Request.Host = a.To
	ex.Request.Headers = proxy.Set(ex.Request.Headers, "Host", a.To)
}

// hostOnly strips a :port suffix.
func hostOnly(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
