package so5

import "sync"

// StatsValue is one named measurement produced by a DataSource.
type StatsValue struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// DataSource is a pluggable source of run-time measurements: dispatchers
// report queue depth (ActiveObject reports its active agent count instead)
// and each registered coop reports its agent count. so5/statsweb polls the
// repository and exposes it over HTTP/Prometheus.
type DataSource interface {
	Name() string
	Collect() []StatsValue
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc struct {
	SourceName string
	CollectFn  func() []StatsValue
}

func (f DataSourceFunc) Name() string           { return f.SourceName }
func (f DataSourceFunc) Collect() []StatsValue  { return f.CollectFn() }

// StatsRepository is the environment-wide registry of DataSources.
// A coop's source is registered when the coop is registered and removed when
// the coop is removed; a dispatcher's source, registered by
// RegisterDispatcher, is never removed.
type StatsRepository struct {
	mu      sync.RWMutex
	sources map[string]DataSource
}

// NewStatsRepository constructs an empty repository.
func NewStatsRepository() *StatsRepository {
	return &StatsRepository{sources: make(map[string]DataSource)}
}

// Register adds ds under its own Name(), replacing any prior source with the
// same name.
func (r *StatsRepository) Register(ds DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[ds.Name()] = ds
}

// Unregister removes a previously registered source, no-op if absent.
func (r *StatsRepository) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, name)
}

// Snapshot collects every registered source's current values.
func (r *StatsRepository) Snapshot() []StatsValue {
	r.mu.RLock()
	sources := make([]DataSource, 0, len(r.sources))
	for _, ds := range r.sources {
		sources = append(sources, ds)
	}
	r.mu.RUnlock()

	var out []StatsValue
	for _, ds := range sources {
		out = append(out, ds.Collect()...)
	}
	return out
}
