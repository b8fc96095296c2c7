package har

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCookiesAttributes(t *testing.T) {
	cookies := []CookieAttrs{{
		Name:  "session",
		Value: "abc123",
		Attrs: []Attr{
			{Key: "Path", Value: "/app"},
			{Key: "Domain", Value: "example.com"},
			{Key: "Expires", Value: "Mon, 24-Aug-2037 00:00:00 GMT"},
			{Key: "HttpOnly"},
			{Key: "Secure"},
		},
	}}

	out := FormatCookies(cookies)

	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, "session", c.Name)
	assert.Equal(t, "abc123", c.Value)
	assert.Equal(t, "/app", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, "Mon, 24-Aug-2037 00:00:00 GMT", c.Expires)
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Secure)
}

func TestFormatCookiesCaseInsensitiveKeys(t *testing.T) {
	cookies := []CookieAttrs{{
		Name:  "id",
		Value: "9",
		Attrs: []Attr{
			{Key: "PATH", Value: "/"},
			{Key: "httponly"},
			{Key: "SECURE"},
		},
	}}

	c := FormatCookies(cookies)[0]

	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Secure)
}

func TestFormatCookiesPresenceFlags(t *testing.T) {
	// Bare attribute presence sets the flag even with no value.
	c := FormatCookies([]CookieAttrs{{
		Name:  "a",
		Value: "1",
		Attrs: []Attr{{Key: "HttpOnly", Value: ""}},
	}})[0]
	assert.True(t, c.HTTPOnly)
	assert.False(t, c.Secure)

	// Absence leaves the flags false, and false is still serialized.
	c = FormatCookies([]CookieAttrs{{Name: "b", Value: "2"}})[0]
	assert.False(t, c.HTTPOnly)
	assert.False(t, c.Secure)
}

func TestFormatCookiesUnknownAttrsDropped(t *testing.T) {
	c := FormatCookies([]CookieAttrs{{
		Name:  "a",
		Value: "1",
		Attrs: []Attr{
			{Key: "SameSite", Value: "Lax"},
			{Key: "Max-Age", Value: "3600"},
			{Key: "Path", Value: "/x"},
		},
	}})[0]

	assert.Equal(t, "/x", c.Path)
	assert.Empty(t, c.Expires)
}

func TestFormatCookiesPreservesOrder(t *testing.T) {
	out := FormatCookies([]CookieAttrs{
		{Name: "first", Value: "1"},
		{Name: "second", Value: "2"},
		{Name: "third", Value: "3"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Name)
	assert.Equal(t, "second", out[1].Name)
	assert.Equal(t, "third", out[2].Name)
}

func TestParseSetCookie(t *testing.T) {
	c := ParseSetCookie("token=xyz; Path=/; HttpOnly; Expires=Mon, 24-Aug-2037 00:00:00 GMT")

	assert.Equal(t, "token", c.Name)
	assert.Equal(t, "xyz", c.Value)
	require.Len(t, c.Attrs, 3)
	assert.Equal(t, Attr{Key: "Path", Value: "/"}, c.Attrs[0])
	assert.Equal(t, Attr{Key: "HttpOnly", Value: ""}, c.Attrs[1])
	assert.Equal(t, Attr{Key: "Expires", Value: "Mon, 24-Aug-2037 00:00:00 GMT"}, c.Attrs[2])
}

func TestParseCookiePairs(t *testing.T) {
	out := ParseCookiePairs("a=1; b=2; flag")

	require.Len(t, out, 3)
	assert.Equal(t, CookieAttrs{Name: "a", Value: "1"}, out[0])
	assert.Equal(t, CookieAttrs{Name: "b", Value: "2"}, out[1])
	assert.Equal(t, CookieAttrs{Name: "flag", Value: ""}, out[2])
}

func TestParseCookiePairsValueWithEquals(t *testing.T) {
	out := ParseCookiePairs("jwt=aaa.bbb=ccc")

	require.Len(t, out, 1)
	assert.Equal(t, "jwt", out[0].Name)
	assert.Equal(t, "aaa.bbb=ccc", out[0].Value)
}
