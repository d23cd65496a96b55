// Package kairosdb forwards collectd samples to KairosDB.
//
// A Writer names every value of a sample after a template, lets formatters
// rewrite names and tags per plugin, optionally turns counters into rates and
// pushes the resulting points over telnet or HTTP:
//
//	target, _ := transport.ParseTarget("http://localhost:8080")
//	conn := transport.New(target)
//	w, err := kairosdb.NewWriter(conn, types.Default(),
//		kairosdb.WithTags(map[string]string{"role": "web01"}),
//		kairosdb.WithRateConversion("cpu", "interface"))
//	w.Write(sample)
package kairosdb

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/juvenn/kairosdb-writer/naming"
	"github.com/juvenn/kairosdb-writer/rate"
	"github.com/juvenn/kairosdb-writer/transport"
	"github.com/juvenn/kairosdb-writer/types"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// Writer turns samples into points and sends them. It is safe for
// concurrent use.
type Writer struct {
	conn          *transport.Manager
	types         *types.Registry
	sanitizer     naming.Sanitizer
	resolver      *naming.Resolver
	rates         *rate.Converter
	template      string
	tags          map[string]string
	addHostTag    bool
	hostSeparator string
	maxAge        time.Duration // http only, 0 disables
	now           func() time.Time
	logger        *zap.Logger
}

// NewWriter creates a writer sending through conn. A first connection
// attempt is made right away; failing it is not an error.
func NewWriter(conn *transport.Manager, reg *types.Registry, opts ...Option) (*Writer, error) {
	if conn == nil {
		return nil, errors.New("kairosdb: nil connection manager")
	}
	if reg == nil {
		return nil, errors.New("kairosdb: nil type registry")
	}
	w := &Writer{
		conn:          conn,
		types:         reg,
		sanitizer:     naming.Sanitizer{Separator: "."},
		resolver:      naming.NewResolver(nil),
		template:      naming.DefaultTemplate,
		addHostTag:    true,
		hostSeparator: "_",
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.template == "" {
		return nil, errors.New("kairosdb: empty metric name template")
	}
	w.logger.Info("initializing kairosdb writer",
		zap.String("target", conn.Target().String()),
		zap.Int("types", reg.Len()))
	if !conn.EnsureConnected() {
		w.logger.Warn("no connection to kairosdb server yet")
	}
	return w, nil
}

// Write forwards one sample. Samples of unknown types or with a wrong number
// of values are dropped. Failures are logged and counted, never returned.
func (w *Writer) Write(s Sample) {
	ds, ok := w.types.Lookup(s.Type)
	if !ok {
		w.logger.Warn("do not know how to handle type, are all types.db files configured?",
			zap.String("type", s.Type), zap.String("plugin", s.Plugin))
		return
	}
	if len(ds) != len(s.Values) {
		w.logger.Warn("differing number of values for type",
			zap.String("type", s.Type), zap.Int("expected", len(ds)), zap.Int("got", len(s.Values)))
		return
	}

	fields := naming.Fields{
		Host:           strings.ReplaceAll(s.Host, ".", w.hostSeparator),
		Plugin:         s.Plugin,
		PluginInstance: w.sanitizer.Sanitize(s.PluginInstance),
		Type:           s.Type,
		TypeInstance:   w.sanitizer.Sanitize(s.TypeInstance),
	}
	name, tags := w.resolver.Resolve(w.template, w.baseTags(fields.Host), fields)

	values := s.Values
	if w.rates.Enabled(s.Plugin) {
		// keyed by the unformatted name so formatters cannot merge counters
		prefix := naming.DefaultName(w.template, fields)
		ds, values = w.rates.Convert(s.Plugin, prefix, ds, values, s.Time)
	}

	points := make([]Point, 0, len(values))
	for i, v := range values {
		// KairosDB has no representation for NaN or infinities
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		points = append(points, Point{Name: name + "." + ds[i].Name, Time: s.Time, Value: *v, Tags: tags})
		w.logger.Debug("metric", zap.String("name", points[len(points)-1].Name), zap.Float64("value", *v))
	}
	if len(points) == 0 {
		return
	}
	w.send(s, points)
}

func (w *Writer) send(s Sample, points []Point) {
	var payload []byte
	if w.conn.Target().HTTPFamily() {
		if age := w.now().Sub(s.Time); w.maxAge > 0 && age > w.maxAge {
			w.conn.Drop(len(points))
			w.logger.Debug("dropping stale sample",
				zap.String("plugin", s.Plugin), zap.String("type", s.Type), zap.Duration("age", age))
			return
		}
		payload = EncodeJSON(points)
	} else {
		payload = EncodeTelnet(points)
	}
	if err := w.conn.Send(payload, len(points)); err != nil {
		w.logger.Warn("error sending data to kairosdb",
			zap.String("target", w.conn.Target().String()), zap.Int("points", len(points)), zap.Error(err))
	}
}

func (w *Writer) baseTags(host string) map[string]string {
	tags := make(map[string]string, len(w.tags)+1)
	for k, v := range w.tags {
		tags[k] = v
	}
	if w.addHostTag {
		tags["host"] = host
	}
	return tags
}

// Stats returns the delivery counters.
func (w *Writer) Stats() transport.Stats {
	return w.conn.Stats()
}

// Metrics is the registry holding the writer's own metrics, to be polled by
// a Reporter.
func (w *Writer) Metrics() metrics.Registry {
	return w.conn.Registry()
}

func (w *Writer) Close() error {
	return w.conn.Close()
}

type Option func(*Writer)

// Metric name template, default to naming.DefaultTemplate.
func WithTemplate(tmpl string) Option {
	return func(w *Writer) {
		w.template = tmpl
	}
}

// Static tags attached to every point.
func WithTags(tags map[string]string) Option {
	return func(w *Writer) {
		w.tags = tags
	}
}

// Whether to tag points with the sample host, default to true. Dots in the
// host name are replaced by separator, default to "_".
func WithHostTag(add bool, separator string) Option {
	return func(w *Writer) {
		w.addHostTag = add
		if separator != "" {
			w.hostSeparator = separator
		}
	}
}

// How plugin and type instances are cleaned up.
func WithSanitizer(s naming.Sanitizer) Option {
	return func(w *Writer) {
		w.sanitizer = s
	}
}

// Formatters used to name metrics.
func WithResolver(r *naming.Resolver) Option {
	return func(w *Writer) {
		w.resolver = r
	}
}

// Convert counters of the given plugins to rates.
func WithRateConversion(plugins ...string) Option {
	return func(w *Writer) {
		w.rates = rate.New(plugins...)
	}
}

// Drop samples older than age instead of sending them. Only applies to
// http and https.
func WithMaxSampleAge(age time.Duration) Option {
	return func(w *Writer) {
		w.maxAge = age
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Clock used for the sample age check, default to time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}
