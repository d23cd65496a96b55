package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/juvenn/kairosdb-writer/config"
	"github.com/juvenn/kairosdb-writer/emitters"
	"github.com/juvenn/kairosdb-writer/emitters/prom"
	"github.com/juvenn/kairosdb-writer/internal/hostsampler"
	"github.com/juvenn/kairosdb-writer/internal/ingest"
	"github.com/juvenn/kairosdb-writer/report"
	"github.com/juvenn/kairosdb-writer/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// buildWriter wires a writer from a validated config.
func buildWriter(cfg *config.Config, logger *zap.Logger) (*kairosdb.Writer, error) {
	target, err := cfg.Target()
	if err != nil {
		return nil, err
	}
	tags, err := cfg.StaticTags()
	if err != nil {
		return nil, err
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Types(logger)
	if err != nil {
		return nil, err
	}
	conn := transport.New(target, append(cfg.TransportOptions(), transport.WithLogger(logger))...)

	opts := []kairosdb.Option{
		kairosdb.WithLogger(logger),
		kairosdb.WithTemplate(cfg.MetricName),
		kairosdb.WithTags(tags),
		kairosdb.WithHostTag(cfg.AddHostTag, cfg.HostSeparator),
		kairosdb.WithSanitizer(cfg.Sanitizer()),
		kairosdb.WithResolver(resolver),
		kairosdb.WithMaxSampleAge(cfg.MaxSampleAge),
	}
	if len(cfg.ConvertToRate) > 0 {
		opts = append(opts, kairosdb.WithRateConversion(cfg.ConvertToRate...))
	}
	return kairosdb.NewWriter(conn, reg, opts...)
}

// newReporter reports the writer's own metrics to Prometheus when stats-addr
// is set, as JSON lines on stdout otherwise. The returned handler is nil
// without Prometheus.
func newReporter(cfg *config.Config, w *kairosdb.Writer, logger *zap.Logger) (*report.Reporter, http.Handler, error) {
	opts := []report.Option{report.WithLogger(logger)}
	if cfg.StatsAddr == "" {
		opts = append(opts, report.WithEmitters(emitters.NewStdoutEmitter()))
		rep, err := report.NewReporter(w.Metrics(), cfg.StatsInterval, opts...)
		return rep, nil, err
	}
	registry := prometheus.NewRegistry()
	em, err := prom.NewEmitter(registry)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, report.WithEmitters(em))
	rep, err := report.NewReporter(w.Metrics(), cfg.StatsInterval, opts...)
	return rep, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), err
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	w, err := buildWriter(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize writer: %w", err)
	}
	defer w.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.StatsInterval > 0 {
		rep, handler, err := newReporter(cfg, w, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize stats reporter: %w", err)
		}
		rep.Start()
		defer rep.Close()
		if handler != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)
			g.Go(func() error {
				return serveUntilDone(ctx, &http.Server{Addr: cfg.StatsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
			})
		}
	}

	if cfg.ListenAddr != "" {
		srv := ingest.NewServer(cfg.ListenAddr, w, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start ingest server: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdown)
		})
	}

	if cfg.HostSamplerInterval > 0 {
		sampler := hostsampler.New(cfg.HostSamplerInterval, hostsampler.WithLogger(logger))
		g.Go(func() error {
			return sampler.Run(ctx, w)
		})
	}

	logger.Info("kairosdb writer started", zap.String("kairosdb", cfg.KairosDBURI))
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})
	return g.Wait()
}

func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
