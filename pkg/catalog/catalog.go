// Package catalog holds the metric metadata catalog: display names,
// units, chart kinds and — the part the aggregator depends on — each
// metric's value kind, which decides how it rolls up over a window.
//
// The built-in catalog covers every metric the resolver can emit.
// Deployments may overlay a YAML file to rename, re-unit or re-kind
// metrics without a code change, optionally hot-reloaded on file save.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pulse/pkg/api"
)

// Catalog is a concurrency-safe metric metadata lookup table.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]api.MetricMetadata
}

// Default returns a catalog populated with the built-in entries.
func Default() *Catalog {
	c := &Catalog{entries: make(map[string]api.MetricMetadata, len(builtinEntries))}
	for _, e := range builtinEntries {
		c.entries[e.MetricName] = e
	}
	return c
}

// Lookup returns the metadata for a metric name.
func (c *Catalog) Lookup(name string) (api.MetricMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Kind returns the value kind for a metric, defaulting to continuous
// for metrics the catalog has never heard of. An unknown metric still
// aggregates sanely; it just won't have a display name.
func (c *Catalog) Kind(name string) api.ValueKind {
	if e, ok := c.Lookup(name); ok {
		return e.Kind
	}
	return api.KindContinuous
}

// All returns every entry ordered by metric name.
func (c *Catalog) All() []api.MetricMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]api.MetricMetadata, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MetricName < entries[j].MetricName
	})
	return entries
}

// overlayFile is the YAML shape of a catalog override file.
type overlayFile struct {
	Metrics []api.MetricMetadata `yaml:"metrics"`
}

// LoadFile merges entries from a YAML overlay into the catalog.
// Overlay entries replace built-ins with the same metric name; entries
// the overlay does not mention are untouched.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	for i, e := range overlay.Metrics {
		if e.MetricName == "" {
			return fmt.Errorf("catalog file %s: entry %d has no metric_name", path, i)
		}
		if e.Kind == "" {
			e.Kind = api.KindContinuous
		}
		switch e.Kind {
		case api.KindContinuous, api.KindCounter, api.KindPeak, api.KindHeadline:
		default:
			return fmt.Errorf("catalog file %s: entry %s has unknown value_kind %q", path, e.MetricName, e.Kind)
		}
		overlay.Metrics[i] = e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range overlay.Metrics {
		c.entries[e.MetricName] = e
	}
	return nil
}
