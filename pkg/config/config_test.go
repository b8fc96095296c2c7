package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hardump.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":7070"
har: out.har
har_filter: "~s 5"
web_port: 7071
log_level: debug
max_store: 50
max_body_size: 2048
upstreams:
  - name: api
    prefix: /api
    target: http://localhost:8081
addons:
  add_header:
    name: x-test
    value: "1"
  redirect:
    from: example.org
    to: staging.example.org
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "out.har", cfg.HAR)
	assert.Equal(t, "~s 5", cfg.HARFilter)
	require.NotNil(t, cfg.WebPort)
	assert.Equal(t, 7071, *cfg.WebPort)
	assert.Equal(t, "debug", cfg.LogLevel)

	require.NotNil(t, cfg.Addons.AddHeader)
	assert.Equal(t, "x-test", cfg.Addons.AddHeader.Name)
	require.NotNil(t, cfg.Addons.Redirect)
	assert.Equal(t, "staging.example.org", cfg.Addons.Redirect.To)
	assert.Nil(t, cfg.Addons.ForceQuery)

	opts := cfg.ToOptions()
	assert.Equal(t, ":7070", opts.ListenAddr)
	assert.Equal(t, 7071, opts.WebPort)
	assert.Equal(t, 50, opts.MaxStore)
	assert.Equal(t, int64(2048), opts.MaxBodySize)
	require.Len(t, opts.Upstreams, 1)
	assert.Equal(t, "api", opts.Upstreams[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestToOptionsSingleUpstreamShorthand(t *testing.T) {
	cfg := &Config{Upstream: "http://localhost:9000"}
	opts := cfg.ToOptions()

	require.Len(t, opts.Upstreams, 1)
	assert.Equal(t, "default", opts.Upstreams[0].Name)
	assert.Equal(t, "/", opts.Upstreams[0].Prefix)
	assert.Equal(t, "http://localhost:9000", opts.Upstreams[0].Target)
}

func TestToOptionsUpstreamDefaults(t *testing.T) {
	cfg := &Config{Upstreams: []UpstreamConfig{{Target: "http://localhost:9000"}}}
	opts := cfg.ToOptions()

	require.Len(t, opts.Upstreams, 1)
	assert.Equal(t, "/", opts.Upstreams[0].Prefix)
}

func TestToOptionsWebPortZeroDisables(t *testing.T) {
	zero := 0
	cfg := &Config{WebPort: &zero}
	opts := cfg.ToOptions()
	assert.Equal(t, -1, opts.WebPort)
}

func TestFindDefault(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindDefault(dir))

	path := filepath.Join(dir, "hardump.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Equal(t, path, FindDefault(dir))

	// hardump.yml takes priority over hardump.yaml.
	preferred := filepath.Join(dir, "hardump.yml")
	require.NoError(t, os.WriteFile(preferred, nil, 0o644))
	assert.Equal(t, preferred, FindDefault(dir))
}

func TestExampleIsValidYAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(Example()), &cfg))
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "traffic.har", cfg.HAR)
	assert.NotEmpty(t, cfg.Upstreams)
}
