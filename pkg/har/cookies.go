package har

import "strings"

// Attr is one cookie attribute as parsed off the wire. Bare attributes
// such as "HttpOnly" carry an empty Value.
type Attr struct {
	Key   string
	Value string
}

// CookieAttrs is one cookie with its ordered attribute list.
type CookieAttrs struct {
	Name  string
	Value string
	Attrs []Attr
}

// FormatCookies turns parsed cookies into archive records, one output
// per input, in order. Attribute keys match case-insensitively;
// httpOnly and secure are set by key presence alone, expires is copied
// through verbatim, and unrecognized keys are dropped. The input is
// never mutated.
func FormatCookies(cookies []CookieAttrs) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		rec := Cookie{Name: c.Name, Value: c.Value}
		for _, a := range c.Attrs {
			switch strings.ToLower(a.Key) {
			case "path":
				rec.Path = a.Value
			case "domain":
				rec.Domain = a.Value
			case "expires":
				rec.Expires = a.Value
			case "httponly":
				rec.HTTPOnly = true
			case "secure":
				rec.Secure = true
			}
		}
		out = append(out, rec)
	}
	return out
}

// ParseSetCookie parses a single Set-Cookie header value into a cookie
// with its attribute list.
func ParseSetCookie(value string) CookieAttrs {
	parts := strings.Split(value, ";")
	name, val := splitPair(parts[0])
	c := CookieAttrs{Name: name, Value: val}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, v := splitPair(p)
		c.Attrs = append(c.Attrs, Attr{Key: k, Value: v})
	}
	return c
}

// ParseCookiePairs parses a Cookie request header value, which carries
// name=value pairs with no attributes.
func ParseCookiePairs(value string) []CookieAttrs {
	var out []CookieAttrs
	for _, p := range strings.Split(value, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, val := splitPair(p)
		out = append(out, CookieAttrs{Name: name, Value: val})
	}
	return out
}

func splitPair(s string) (key, value string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
