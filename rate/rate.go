// Package rate turns monotonic counter values into per second rates.
package rate

import (
	"sync"
	"time"

	"github.com/juvenn/kairosdb-writer/types"
)

// Suffix is appended to the data source name of a converted value.
const Suffix = "_rate"

type observation struct {
	value float64
	time  time.Time
}

// Converter remembers the last value of every counter it has seen, keyed by
// metric prefix and data source name.
type Converter struct {
	plugins map[string]bool

	mu   sync.Mutex
	last map[string]observation
}

// New creates a converter for samples of the given plugins.
func New(plugins ...string) *Converter {
	set := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		set[p] = true
	}
	return &Converter{
		plugins: set,
		last:    make(map[string]observation),
	}
}

// Enabled reports whether samples of plugin are converted.
func (c *Converter) Enabled(plugin string) bool {
	return c != nil && c.plugins[plugin]
}

// Convert replaces the COUNTER and DERIVE values of a sample with rates.
// The first observation of a counter only primes the state and yields no
// value, nor does an observation with the same timestamp as the previous one.
// Other values are passed through in place. Absent values are kept absent
// and leave the state alone.
func (c *Converter) Convert(plugin, prefix string, ds []types.DataSource, values []*float64, t time.Time) ([]types.DataSource, []*float64) {
	if !c.Enabled(plugin) {
		return ds, values
	}
	outDS := make([]types.DataSource, 0, len(ds))
	outValues := make([]*float64, 0, len(values))

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range ds {
		v := values[i]
		if !d.Kind.Monotonic() || v == nil {
			outDS = append(outDS, d)
			outValues = append(outValues, v)
			continue
		}
		key := prefix + "." + d.Name
		prev, seen := c.last[key]
		if !seen {
			c.last[key] = observation{value: *v, time: t}
			continue
		}
		elapsed := t.Sub(prev.time).Seconds()
		if elapsed == 0 {
			continue
		}
		r := (*v - prev.value) / elapsed
		c.last[key] = observation{value: *v, time: t}
		outDS = append(outDS, types.DataSource{Name: d.Name + Suffix, Kind: types.Gauge, Min: d.Min, Max: d.Max})
		outValues = append(outValues, &r)
	}
	return outDS, outValues
}

// Len returns the number of counters being tracked.
func (c *Converter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
