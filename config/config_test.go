package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "so5.yaml", `
max_state_nesting_depth: 8
redirection_deep_limit: 16
default_exception_reaction: shutdown
auto_shutdown_when_no_coops: true
dispatcher:
  kind: thread_pool
  worker_count: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxStateNestingDepth)
	assert.Equal(t, 16, cfg.RedirectionDeepLimit)
	assert.True(t, cfg.AutoShutdownWhenNoCoops)
	assert.Equal(t, "thread_pool", cfg.Dispatcher.Kind)
	assert.Equal(t, 4, cfg.Dispatcher.WorkerCount)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "so5.toml", `
max_state_nesting_depth = 10
redirection_deep_limit = 20

[dispatcher]
kind = "active_object"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxStateNestingDepth)
	assert.Equal(t, "active_object", cfg.Dispatcher.Kind)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "so5.ini", "whatever")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name string
		cfg  FileConfig
	}{
		{"zero nesting", FileConfig{MaxStateNestingDepth: 0, RedirectionDeepLimit: 1}},
		{"zero redirection", FileConfig{MaxStateNestingDepth: 1, RedirectionDeepLimit: 0}},
		{"bad exception reaction", FileConfig{MaxStateNestingDepth: 1, RedirectionDeepLimit: 1, DefaultExceptionReaction: "explode"}},
		{"bad dispatcher kind", FileConfig{MaxStateNestingDepth: 1, RedirectionDeepLimit: 1, Dispatcher: DispatcherConfig{Kind: "quantum"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestToOptionsAppliesDispatcherFactory(t *testing.T) {
	cfg := &FileConfig{
		MaxStateNestingDepth: 12,
		RedirectionDeepLimit: 24,
		Dispatcher:           DispatcherConfig{Kind: "one_thread"},
	}

	var sawKind string
	opts, err := cfg.ToOptions(func(d DispatcherConfig) (so5.Dispatcher, error) {
		sawKind = d.Kind
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "one_thread", sawKind)
	assert.NotEmpty(t, opts)
}
