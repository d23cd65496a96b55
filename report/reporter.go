// Package report periodically snapshots the writer's own metrics, kept in a
// go-metrics registry, and hands them to emitters.
package report

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Emitter interface {
	Emit(data ...Datum) error
	Close() error
}

// A reporter periodically polls a registry and emits to its emitters.
type Reporter struct {
	registry  metrics.Registry
	interval  time.Duration
	autoReset bool
	emitters  []Emitter
	labels    map[string]string // attached to each datum
	logger    *zap.Logger
	now       func() time.Time

	exit chan struct{}
	done sync.WaitGroup
	once sync.Once
}

// Create reporter that is yet to be started. Upon closing, the emitters are
// closed too.
func NewReporter(registry metrics.Registry, interval time.Duration, opts ...Option) (*Reporter, error) {
	rep := &Reporter{
		registry: registry,
		interval: interval,
		logger:   zap.NewNop(),
		now:      time.Now,
		exit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rep)
	}
	if len(rep.emitters) < 1 {
		return nil, errors.New("specify at least one emitter to report metrics to")
	}
	if rep.interval <= 0 {
		return nil, errors.New("report interval must be positive")
	}
	return rep, nil
}

// Poll snapshots all metrics of the registry, sorted by name.
func (rep *Reporter) Poll() []Datum {
	now := rep.now()
	data := make([]Datum, 0, 8)
	rep.registry.Each(func(name string, metric any) {
		datum := DatumFromMetric(name, metric, now, rep.autoReset)
		if datum == nil {
			return
		}
		if len(rep.labels) > 0 {
			datum.Labels = make(map[string]string, len(rep.labels))
			for k, v := range rep.labels {
				datum.Labels[k] = v
			}
		}
		data = append(data, *datum)
	})
	sort.Slice(data, func(i, j int) bool { return data[i].Name < data[j].Name })
	return data
}

func (rep *Reporter) loop() {
	defer rep.done.Done()
	rep.logger.Info("started to report metrics", zap.Duration("interval", rep.interval))
	ticker := time.NewTicker(rep.interval)
	defer ticker.Stop()
	for {
		select {
		case <-rep.exit:
			return
		case <-ticker.C:
			rep.report()
		}
	}
}

func (rep *Reporter) report() {
	data := rep.Poll()
	if len(data) == 0 {
		return
	}
	for _, em := range rep.emitters {
		if err := em.Emit(data...); err != nil {
			rep.logger.Warn("report metrics error", zap.Int("metrics", len(data)), zap.Error(err))
		} else {
			rep.logger.Debug("reported metrics", zap.Int("metrics", len(data)))
		}
	}
}

func (rep *Reporter) Start() {
	rep.done.Add(1)
	go rep.loop()
}

// Close stops polling, reports one last time and closes the emitters.
func (rep *Reporter) Close() error {
	var err error
	rep.once.Do(func() {
		close(rep.exit)
		rep.done.Wait()
		rep.report()
		for _, em := range rep.emitters {
			err = multierr.Append(err, em.Close())
		}
	})
	return err
}

type Option func(*Reporter)

// Where to emit metrics
func WithEmitters(emitters ...Emitter) Option {
	return func(rep *Reporter) {
		rep.emitters = append(rep.emitters, emitters...)
	}
}

// Auto reset counters and histograms after each report.
func WithAutoReset(flag bool) Option {
	return func(rep *Reporter) {
		rep.autoReset = flag
	}
}

// Labels that will be attached to each datum. Args must be in the form
// of k,v,k,v.
func WithLabels(kvs ...string) Option {
	n := len(kvs)
	if n%2 != 0 {
		panic("reporter labels expects an even number of args")
	}
	labels := make(map[string]string, n/2)
	for i := 0; i < n; i += 2 {
		labels[kvs[i]] = kvs[i+1]
	}
	return func(rep *Reporter) {
		rep.labels = labels
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(rep *Reporter) {
		rep.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(rep *Reporter) {
		rep.now = now
	}
}
