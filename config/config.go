// Package config loads Environment tuning from YAML or TOML files into
// so5.EnvironmentOption values: a plain struct decoded by BurntSushi/toml or
// gopkg.in/yaml.v3 and then validated before it ever reaches an Environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/so5go/so5"
)

// DispatcherConfig selects and sizes the environment's default dispatcher.
type DispatcherConfig struct {
	Kind        string `yaml:"kind" toml:"kind"` // one_thread, thread_pool, active_object, prio_one_thread, prio_one_thread_quoted, prio_thread_pool, prio_dedicated_threads
	WorkerCount int    `yaml:"worker_count" toml:"worker_count"`
}

// TraceConfig describes a trace backend and its format/target. It is
// decoded by Load but ToOptions does not turn it into any option.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Format  string `yaml:"format" toml:"format"` // text, structured, json
	Target  string `yaml:"target" toml:"target"` // "stdout" or a file path
}

// FileConfig is the on-disk shape decoded by Load; use ToOptions to turn it
// into so5.EnvironmentOption values.
type FileConfig struct {
	MaxStateNestingDepth     int    `yaml:"max_state_nesting_depth" toml:"max_state_nesting_depth"`
	RedirectionDeepLimit     int    `yaml:"redirection_deep_limit" toml:"redirection_deep_limit"`
	DefaultExceptionReaction string `yaml:"default_exception_reaction" toml:"default_exception_reaction"`
	AutoShutdownWhenNoCoops  bool   `yaml:"auto_shutdown_when_no_coops" toml:"auto_shutdown_when_no_coops"`

	Dispatcher DispatcherConfig `yaml:"dispatcher" toml:"dispatcher"`
	Trace      TraceConfig      `yaml:"trace" toml:"trace"`
}

// Load reads and decodes path, choosing YAML or TOML by file extension
// (.yaml/.yml or .toml).
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("so5/config: read %s: %w", path, err)
	}

	cfg := &FileConfig{
		MaxStateNestingDepth: so5.DefaultMaxStateNestingDepth,
		RedirectionDeepLimit: so5.DefaultRedirectionDeepLimit,
		Dispatcher:           DispatcherConfig{Kind: "one_thread", WorkerCount: 1},
	}

	switch ext := strings.ToLower(extOf(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("so5/config: parse yaml %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("so5/config: parse toml %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("so5/config: unsupported config extension %q", ext)
	}

	return cfg, cfg.Validate()
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}

// Validate rejects settings that would violate an Environment invariant
// before they ever reach one.
func (c *FileConfig) Validate() error {
	if c.MaxStateNestingDepth < 1 {
		return fmt.Errorf("so5/config: max_state_nesting_depth must be >= 1, got %d", c.MaxStateNestingDepth)
	}
	if c.RedirectionDeepLimit < 1 {
		return fmt.Errorf("so5/config: redirection_deep_limit must be >= 1, got %d", c.RedirectionDeepLimit)
	}
	switch c.DefaultExceptionReaction {
	case "", "abort", "shutdown", "deregister_coop", "ignore":
	default:
		return fmt.Errorf("so5/config: unknown default_exception_reaction %q", c.DefaultExceptionReaction)
	}
	switch c.Dispatcher.Kind {
	case "", "one_thread", "thread_pool", "active_object",
		"prio_one_thread", "prio_one_thread_quoted", "prio_thread_pool", "prio_dedicated_threads":
	default:
		return fmt.Errorf("so5/config: unknown dispatcher.kind %q", c.Dispatcher.Kind)
	}
	return nil
}

func (c *FileConfig) exceptionReaction() so5.ExceptionReactionKind {
	switch c.DefaultExceptionReaction {
	case "shutdown":
		return so5.ShutdownEnvironmentOnException
	case "deregister_coop":
		return so5.DeregisterCoopOnException
	case "ignore":
		return so5.IgnoreException
	default:
		return so5.AbortOnException
	}
}

// ToOptions converts the decoded config into so5.EnvironmentOption values.
// Dispatcher construction is left to the caller (via dispatcherFactory)
// since this package cannot import so5/dispatch without creating an import
// cycle risk for callers that only want config, not every dispatcher
// family.
func (c *FileConfig) ToOptions(dispatcherFactory func(DispatcherConfig) (so5.Dispatcher, error)) ([]so5.EnvironmentOption, error) {
	opts := []so5.EnvironmentOption{
		so5.WithMaxStateNestingDepth(c.MaxStateNestingDepth),
		so5.WithRedirectionDeepLimit(c.RedirectionDeepLimit),
		so5.WithDefaultExceptionReaction(c.exceptionReaction()),
		so5.WithAutoShutdownWhenNoCoops(c.AutoShutdownWhenNoCoops),
	}
	if dispatcherFactory != nil {
		d, err := dispatcherFactory(c.Dispatcher)
		if err != nil {
			return nil, err
		}
		if d != nil {
			opts = append(opts, so5.WithDefaultDispatcher(d))
		}
	}
	return opts, nil
}
