// Package hostsampler produces collectd style samples of the local host's
// cpu, load, memory and swap, so the writer can run without a collectd agent.
package hostsampler

import (
	"context"
	"os"
	"strings"
	"time"

	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// collectd reports cpu time in jiffies.
const userHZ = 100

type SampleWriter interface {
	Write(s kairosdb.Sample)
}

type Sampler struct {
	host     string
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cpuTimes func(percpu bool) ([]cpu.TimesStat, error)
	loadAvg  func() (*load.AvgStat, error)
	vmem     func() (*mem.VirtualMemoryStat, error)
	swap     func() (*mem.SwapMemoryStat, error)
}

func New(interval time.Duration, opts ...Option) *Sampler {
	host, _ := os.Hostname()
	s := &Sampler{
		host:     host,
		interval: interval,
		logger:   zap.NewNop(),
		now:      time.Now,
		cpuTimes: cpu.Times,
		loadAvg:  load.Avg,
		vmem:     mem.VirtualMemory,
		swap:     mem.SwapMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context, w SampleWriter) error {
	s.logger.Info("sampling host", zap.String("host", s.host), zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, sample := range s.Collect() {
				w.Write(sample)
			}
		}
	}
}

// Collect takes one round of samples. A failing source is logged and left
// out.
func (s *Sampler) Collect() []kairosdb.Sample {
	now := s.now()
	var out []kairosdb.Sample
	sample := func(plugin, pluginInstance, typ, typeInstance string, values ...float64) {
		out = append(out, kairosdb.Sample{
			Host: s.host, Plugin: plugin, PluginInstance: pluginInstance,
			Type: typ, TypeInstance: typeInstance,
			Time: now, Interval: s.interval, Values: kairosdb.Values(values...),
		})
	}

	if times, err := s.cpuTimes(true); err != nil {
		s.logger.Warn("cannot read cpu times", zap.Error(err))
	} else {
		for _, t := range times {
			core := strings.TrimPrefix(t.CPU, "cpu")
			for _, state := range []struct {
				name    string
				seconds float64
			}{
				{"user", t.User}, {"system", t.System}, {"idle", t.Idle}, {"nice", t.Nice},
				{"wait", t.Iowait}, {"interrupt", t.Irq}, {"softirq", t.Softirq}, {"steal", t.Steal},
			} {
				sample("cpu", core, "cpu", state.name, float64(int64(state.seconds*userHZ)))
			}
		}
	}

	if avg, err := s.loadAvg(); err != nil {
		s.logger.Warn("cannot read load average", zap.Error(err))
	} else {
		sample("load", "", "load", "", avg.Load1, avg.Load5, avg.Load15)
	}

	if vm, err := s.vmem(); err != nil {
		s.logger.Warn("cannot read memory", zap.Error(err))
	} else {
		sample("memory", "", "memory", "used", float64(vm.Used))
		sample("memory", "", "memory", "free", float64(vm.Free))
		sample("memory", "", "memory", "cached", float64(vm.Cached))
		sample("memory", "", "memory", "buffered", float64(vm.Buffers))
	}

	if sw, err := s.swap(); err != nil {
		s.logger.Warn("cannot read swap", zap.Error(err))
	} else {
		sample("swap", "", "swap", "used", float64(sw.Used))
		sample("swap", "", "swap", "free", float64(sw.Free))
	}
	return out
}

type Option func(*Sampler)

// Host reported in samples, default to os.Hostname.
func WithHost(host string) Option {
	return func(s *Sampler) {
		s.host = host
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sampler) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}
