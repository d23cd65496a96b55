package kairosdb

import "time"

// A sample is one collectd value list: a timestamped measurement with one or
// more values aligned to the data sources of its type.
type Sample struct {
	Type           string
	TypeInstance   string
	Plugin         string
	PluginInstance string
	Host           string
	Time           time.Time
	Interval       time.Duration
	Values         []*float64 // nil means no reading for that slot
}

// Values builds a value slice from plain floats.
func Values(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		v := vs[i]
		out[i] = &v
	}
	return out
}

// Unix converts collectd's fractional epoch seconds to time.
func Unix(sec float64) time.Time {
	whole := int64(sec)
	return time.Unix(whole, int64((sec-float64(whole))*1e9))
}
