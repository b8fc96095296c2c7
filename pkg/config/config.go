// Package config handles loading hardump configuration from YAML files.
//
// Loading priority (later wins):
//
//  1. Built-in defaults
//  2. Config file (hardump.yml in cwd, or --config path)
//  3. Explicit CLI flags
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fidiego/hardump/pkg/proxy"
)

// DefaultFilenames lists the config file names searched in the current
// directory when --config is not given.
var DefaultFilenames = []string{"hardump.yml", "hardump.yaml", ".hardump.yml"}

// UpstreamConfig is the YAML representation of a single upstream.
type UpstreamConfig struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

// HeaderRewrite configures the response-header injection addon.
type HeaderRewrite struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// QueryRewrite configures the query-parameter injection addon.
type QueryRewrite struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// FormRewrite configures the urlencoded-form rewrite addon.
type FormRewrite struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// HostRedirect configures the host redirection addon.
type HostRedirect struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// AddonsConfig enables the optional rewrite addons. A nil section means
// the addon is off.
type AddonsConfig struct {
	AddHeader   *HeaderRewrite `yaml:"add_header"`
	ForceQuery  *QueryRewrite  `yaml:"force_query"`
	RewriteForm *FormRewrite   `yaml:"rewrite_form"`
	Redirect    *HostRedirect  `yaml:"redirect"`
}

// Config is the full YAML configuration for hardump.
type Config struct {
	// Listen is the proxy server address (e.g. ":9090").
	Listen string `yaml:"listen"`

	// HAR is the archive destination: a file path, or "-" for stdout.
	HAR string `yaml:"har"`

	// HARFilter limits which exchanges are recorded (filter expression).
	HARFilter string `yaml:"har_filter"`

	// WebPort is the port for the web inspection UI. 0 disables it.
	WebPort *int `yaml:"web_port"`

	// NoTUI disables the interactive terminal UI.
	NoTUI bool `yaml:"no_tui"`

	// NoColor disables ANSI colours in log output.
	NoColor bool `yaml:"no_color"`

	// LogLevel sets the diagnostic log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// MaxStore is the ring-buffer capacity for the exchange store.
	MaxStore *int `yaml:"max_store"`

	// MaxBodySize is the max bytes captured per request/response body.
	MaxBodySize *int64 `yaml:"max_body_size"`

	// Upstream is a shorthand for a single catch-all upstream.
	// Equivalent to a single entry in Upstreams with prefix "/".
	Upstream string `yaml:"upstream"`

	// Upstreams defines the routing table for multi-upstream mode.
	Upstreams []UpstreamConfig `yaml:"upstreams"`

	// Addons enables the optional rewrite addons.
	Addons AddonsConfig `yaml:"addons"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// FindDefault looks for a config file in dir using DefaultFilenames.
// Returns the path of the first file found, or "" if none exist.
func FindDefault(dir string) string {
	for _, name := range DefaultFilenames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ToOptions converts the Config into proxy.Options, applying built-in
// defaults for any fields left unset.
func (c *Config) ToOptions() proxy.Options {
	opts := proxy.Options{}

	if c.Listen != "" {
		opts.ListenAddr = c.Listen
	}
	if c.WebPort != nil {
		opts.WebPort = *c.WebPort
		// Zero means "disabled", not "use the default".
		if opts.WebPort == 0 {
			opts.WebPort = -1
		}
	}
	if c.MaxStore != nil {
		opts.MaxStore = *c.MaxStore
	}
	if c.MaxBodySize != nil {
		opts.MaxBodySize = *c.MaxBodySize
	}

	// Build upstream list.
	if c.Upstream != "" {
		opts.Upstreams = append(opts.Upstreams, proxy.Upstream{
			Name:   "default",
			Prefix: "/",
			Target: c.Upstream,
		})
	}
	for _, u := range c.Upstreams {
		prefix := u.Prefix
		if prefix == "" {
			prefix = "/"
		}
		name := u.Name
		if name == "" {
			name = u.Prefix
		}
		opts.Upstreams = append(opts.Upstreams, proxy.Upstream{
			Name:   name,
			Prefix: prefix,
			Target: u.Target,
		})
	}

	return opts
}

// Example returns the canonical example config as a YAML string.
func Example() string {
	return `# hardump configuration
# All fields are optional; CLI flags take precedence over this file.

# Proxy listen address.
listen: ":9090"

# HAR archive destination: a file path, or "-" for stdout.
# Written once, at shutdown.
har: traffic.har

# Record only matching exchanges (same syntax as the TUI filter).
# har_filter: "~p /api & !~s 3"

# Port for the web inspection UI. Set to 0 to disable.
web_port: 9091

# Disable the interactive terminal UI (log to stdout instead).
no_tui: false

# Disable ANSI colors in log output.
no_color: false

# Diagnostic log level: debug, info, warn, error.
log_level: info

# Maximum number of exchanges held in memory for the UIs (ring buffer).
# The HAR archive is unbounded and unaffected by this limit.
max_store: 1000

# Maximum bytes captured per request/response body (default: 1048576 = 1 MiB).
max_body_size: 1048576

# --- Upstream routing ---

# Single upstream: proxy everything to one target.
# upstream: http://localhost:8081

# Multi-upstream: route by path prefix (longer prefixes win).
upstreams:
  - name: ctl-api
    prefix: /api
    target: http://localhost:8081
  - name: dashboard
    prefix: /
    target: http://localhost:4000

# --- Optional rewrite addons ---

# addons:
#   add_header:            # inject a response header
#     name: x-proxied-by
#     value: hardump
#   force_query:           # force a query parameter on every request
#     key: debug
#     value: "1"
#   rewrite_form:          # set a urlencoded form field
#     field: source
#     value: hardump
#   redirect:              # reroute one host to another
#     from: example.org
#     to: staging.example.org
`
}
