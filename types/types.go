// Package types holds the collectd type schema: for each type name the
// ordered list of data sources its values are aligned to.
package types

import (
	"fmt"
	"strings"
)

type Kind string

const (
	Gauge    Kind = "GAUGE"
	Counter  Kind = "COUNTER"
	Derive   Kind = "DERIVE"
	Absolute Kind = "ABSOLUTE"
)

// ParseKind accepts a data source kind in any letter case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(s)); k {
	case Gauge, Counter, Derive, Absolute:
		return k, nil
	}
	return "", fmt.Errorf("unknown data source kind %q", s)
}

// Monotonic reports whether values of this kind only grow and are worth
// turning into rates.
func (k Kind) Monotonic() bool {
	return k == Counter || k == Derive
}

// A data source describes one value slot of a type.
type DataSource struct {
	Name string
	Kind Kind
	Min  float64
	Max  float64
}

// Registry maps type names to their data sources. It is filled once at
// startup and only read afterwards.
type Registry struct {
	types map[string][]DataSource
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string][]DataSource)}
}

// Add defines a type, replacing any earlier definition of the same name.
func (r *Registry) Add(name string, ds ...DataSource) {
	r.types[name] = ds
}

// Lookup returns the data sources of a type, or false if the type is unknown.
func (r *Registry) Lookup(name string) ([]DataSource, bool) {
	ds, ok := r.types[name]
	return ds, ok
}

func (r *Registry) Len() int {
	return len(r.types)
}
