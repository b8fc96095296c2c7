package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidiego/hardump/pkg/proxy"
)

func sampleExchange() *proxy.Exchange {
	return &proxy.Exchange{
		Upstream: "api",
		Request: &proxy.CapturedRequest{
			Method: "POST",
			Path:   "/api/users",
			Headers: []proxy.Header{
				{Name: "Content-Type", Value: "application/json"},
			},
			Body: []byte(`{"name":"alice"}`),
		},
		Response: &proxy.CapturedResponse{
			StatusCode: 502,
			Headers: []proxy.Header{
				{Name: "X-Request-Id", Value: "abc-123"},
			},
			Body: []byte("bad gateway"),
		},
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse("")
	require.NoError(t, err)
	assert.True(t, f(sampleExchange()))

	f, err = Parse("   ")
	require.NoError(t, err)
	assert.True(t, f(&proxy.Exchange{}))
}

func TestPrimitives(t *testing.T) {
	ex := sampleExchange()

	tests := []struct {
		expr string
		want bool
	}{
		{"~m POST", true},
		{"~m post", true}, // case-insensitive
		{"~m GET", false},
		{"~s 5", true}, // prefix: 5xx
		{"~s 502", true},
		{"~s 200", false},
		{"~p /api", true},
		{"~p /admin", false},
		{"~h content-type:json", true},
		{"~h x-request-id", true}, // key-only form
		{"~h accept", false},
		{"~b alice", true},
		{"~b gateway", true}, // response body too
		{"~b missing", false},
		{"~u api", true},
		{"~u web", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f(ex))
		})
	}
}

func TestOperators(t *testing.T) {
	ex := sampleExchange()

	tests := []struct {
		expr string
		want bool
	}{
		{"~m POST & ~s 5", true},
		{"~m POST & ~s 2", false},
		{"~m GET | ~s 5", true},
		{"~m GET | ~s 2", false},
		{"!~m GET", true},
		{"!~m POST", false},
		{"(~m GET | ~m POST) & ~p /api", true},
		{"!(~s 2 | ~s 3)", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f(ex))
		})
	}
}

func TestQuotedArgument(t *testing.T) {
	f, err := Parse(`~b "bad gateway"`)
	require.NoError(t, err)
	assert.True(t, f(sampleExchange()))
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"~",
		"~z foo",
		"~m",
		"(~m GET",
		"~m GET garbage",
		`~b "unterminated`,
		"& ~m GET",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}

func TestNilRequestResponse(t *testing.T) {
	ex := &proxy.Exchange{Upstream: "api"}

	for _, expr := range []string{"~m GET", "~s 5", "~p /", "~h a", "~b x"} {
		f, err := Parse(expr)
		require.NoError(t, err)
		assert.False(t, f(ex), expr)
	}

	f, err := Parse("~u api")
	require.NoError(t, err)
	assert.True(t, f(ex))
}
