package report

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeMeter     MetricType = "meter"
	TypeTimer     MetricType = "timer"
	TypeHistogram MetricType = "histogram"
)

// A datum is one snapshot of one metric of the writer itself, such as the
// number of points sent.
type Datum struct {
	Name   string             `json:"name"`
	Type   MetricType         `json:"type"`
	Time   time.Time          `json:"time"`
	Labels map[string]string  `json:"labels,omitempty"`
	Fields map[string]float64 `json:"fields"`
}

var percentiles = []float64{0.5, 0.75, 0.95, 0.99, 0.999}

func sampleFields(count, min, max int64, mean, stddev float64, ps []float64) map[string]float64 {
	return map[string]float64{
		"count":  float64(count),
		"min":    float64(min),
		"max":    float64(max),
		"mean":   mean,
		"stddev": stddev,
		"p50":    ps[0],
		"p75":    ps[1],
		"p95":    ps[2],
		"p99":    ps[3],
		"p999":   ps[4],
	}
}

// DatumFromMetric snapshots a go-metrics metric, nil for unsupported kinds.
// Counters and histograms are cleared after the snapshot if reset is set.
func DatumFromMetric(name string, metric any, now time.Time, reset bool) *Datum {
	d := &Datum{Name: name, Time: now}
	switch metric := metric.(type) {
	case metrics.Counter:
		d.Type = TypeCounter
		d.Fields = map[string]float64{"count": float64(metric.Snapshot().Count())}
		if reset {
			metric.Clear()
		}
	case metrics.Histogram:
		ms := metric.Snapshot()
		d.Type = TypeHistogram
		d.Fields = sampleFields(ms.Count(), ms.Min(), ms.Max(), ms.Mean(), ms.StdDev(), ms.Percentiles(percentiles))
		if reset {
			metric.Clear()
		}
	case metrics.Meter:
		ms := metric.Snapshot()
		d.Type = TypeMeter
		d.Fields = map[string]float64{
			"count": float64(ms.Count()),
			"m1":    ms.Rate1(),
			"m5":    ms.Rate5(),
			"m15":   ms.Rate15(),
			"mean":  ms.RateMean(),
		}
	case metrics.Timer:
		ms := metric.Snapshot()
		d.Type = TypeTimer
		d.Fields = sampleFields(ms.Count(), ms.Min(), ms.Max(), ms.Mean(), ms.StdDev(), ms.Percentiles(percentiles))
		d.Fields["m1"] = ms.Rate1()
		d.Fields["meanrate"] = ms.RateMean()
	case metrics.Gauge:
		d.Type = TypeGauge
		d.Fields = map[string]float64{"gauge": float64(metric.Snapshot().Value())}
	case metrics.GaugeFloat64:
		d.Type = TypeGauge
		d.Fields = map[string]float64{"gauge": metric.Snapshot().Value()}
	default:
		return nil
	}
	return d
}
