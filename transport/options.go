package transport

import (
	"crypto/tls"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Register delivery counters in the given registry instead of a private one.
func WithRegistry(reg metrics.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// Clock used to throttle telnet reconnects, default to time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// TCP connect timeout, default to 5s.
func WithDialTimeout(du time.Duration) Option {
	return func(m *Manager) {
		m.dialTimeout = du
	}
}

// Http request and telnet write timeout, default to 5s.
func WithRequestTimeout(du time.Duration) Option {
	return func(m *Manager) {
		m.requestTimeout = du
	}
}

// Minimum time between two telnet connect attempts, default to 10s.
func WithReconnectInterval(du time.Duration) Option {
	return func(m *Manager) {
		m.reconnectInterval = du
	}
}

// Basic authentication for the HTTP API.
func WithUserAuth(user, pass string) Option {
	return func(m *Manager) {
		m.username = user
		m.password = pass
	}
}

// TLS settings for https targets.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(m *Manager) {
		m.tlsConfig = cfg
	}
}
