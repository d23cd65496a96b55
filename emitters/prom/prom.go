// Package prom exposes the writer's own metrics to a Prometheus scrape.
package prom

import (
	"sort"
	"strings"
	"sync"

	"github.com/juvenn/kairosdb-writer/report"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kairosdb_writer"

// Emitter keeps the last emitted data and serves it as gauges, one per
// metric and field:
//
//	kairosdb_writer_kairosdb_sent_count{host="web01"} 42
type Emitter struct {
	mu   sync.RWMutex
	data []report.Datum
}

// NewEmitter creates an emitter collected by reg.
func NewEmitter(reg prometheus.Registerer) (*Emitter, error) {
	em := &Emitter{}
	if err := reg.Register(em); err != nil {
		return nil, err
	}
	return em, nil
}

func (em *Emitter) Emit(data ...report.Datum) error {
	snapshot := make([]report.Datum, len(data))
	copy(snapshot, data)
	em.mu.Lock()
	em.data = snapshot
	em.mu.Unlock()
	return nil
}

func (em *Emitter) Close() error {
	return nil
}

// Describe sends nothing, which makes the emitter an unchecked collector:
// the set of metrics is only known after the first report.
func (em *Emitter) Describe(chan<- *prometheus.Desc) {}

func (em *Emitter) Collect(ch chan<- prometheus.Metric) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	for _, d := range em.data {
		fields := make([]string, 0, len(d.Fields))
		for f := range d.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			desc := prometheus.NewDesc(
				prometheus.BuildFQName(namespace, metricName(d.Name), f),
				string(d.Type)+" "+d.Name+" "+f, nil, d.Labels)
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, d.Fields[f])
			if err != nil {
				m = prometheus.NewInvalidMetric(desc, err)
			}
			ch <- m
		}
	}
}

func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
