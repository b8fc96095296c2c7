package proxy

import "github.com/rs/zerolog"

const (
	DefaultListenAddr = ":9090"
	DefaultWebPort    = 9091
	DefaultMaxStore   = 1000
	DefaultMaxBody    = 1 << 20 // 1 MiB
)

// Options configures the proxy engine.
type Options struct {
	// ListenAddr is the address for the proxy HTTP server (e.g. ":9090").
	ListenAddr string

	// WebPort is the port for the web inspection UI. Zero picks the
	// default; a negative value disables it.
	WebPort int

	// Upstreams defines the routing table.
	Upstreams []Upstream

	// MaxStore is the ring-buffer capacity for the exchange store.
	// Archive entries are unaffected by store eviction.
	MaxStore int

	// MaxBodySize is the maximum number of bytes captured per request/response body.
	MaxBodySize int64

	// Logger receives engine diagnostics. Defaults to a disabled logger.
	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.ListenAddr == "" {
		o.ListenAddr = DefaultListenAddr
	}
	if o.WebPort == 0 {
		o.WebPort = DefaultWebPort
	}
	if o.MaxStore == 0 {
		o.MaxStore = DefaultMaxStore
	}
	if o.MaxBodySize == 0 {
		o.MaxBodySize = DefaultMaxBody
	}
}
