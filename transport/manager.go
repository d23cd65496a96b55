// Package transport owns the connection to KairosDB. A Manager holds either
// a long lived telnet socket or a keep-alive HTTP client, reconnects after
// failures and counts delivered, dropped and failed points.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const datapointsPath = "/api/v1/datapoints"

var ErrNotConnected = errors.New("no connection to kairosdb server")

// StatusError is returned when KairosDB answers with anything but 204.
type StatusError struct {
	URL    string
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s %s", http.MethodPost, e.URL, e.Status, e.Body)
}

// Stats are delivery counters, in points.
type Stats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Errored int64 `json:"errored"`
}

// Manager serializes all use of the connection: connecting, sending and
// counting happen under one lock.
type Manager struct {
	target            Target
	url               string
	logger            *zap.Logger
	now               func() time.Time
	dial              func(ctx context.Context, network, addr string) (net.Conn, error)
	dialTimeout       time.Duration
	requestTimeout    time.Duration
	reconnectInterval time.Duration
	username          string
	password          string
	tlsConfig         *tls.Config
	registry          metrics.Registry

	mu        sync.Mutex
	conn      net.Conn     // telnet
	client    *http.Client // http, https
	reconnect *rate.Limiter
	sent      metrics.Counter
	dropped   metrics.Counter
	errored   metrics.Counter
	latency   metrics.Timer
}

// New creates a disconnected manager for target.
func New(target Target, opts ...Option) *Manager {
	m := &Manager{
		target:            target,
		url:               fmt.Sprintf("%s://%s%s", target.Protocol, target.Addr(), datapointsPath),
		logger:            zap.NewNop(),
		now:               time.Now,
		dialTimeout:       5 * time.Second,
		requestTimeout:    5 * time.Second,
		reconnectInterval: 10 * time.Second,
		registry:          metrics.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dial == nil {
		m.dial = (&net.Dialer{Timeout: m.dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	m.reconnect = rate.NewLimiter(rate.Every(m.reconnectInterval), 1)
	m.sent = metrics.GetOrRegisterCounter("kairosdb.sent", m.registry)
	m.dropped = metrics.GetOrRegisterCounter("kairosdb.dropped", m.registry)
	m.errored = metrics.GetOrRegisterCounter("kairosdb.errored", m.registry)
	m.latency = metrics.GetOrRegisterTimer("kairosdb.send", m.registry)
	return m
}

func (m *Manager) Target() Target {
	return m.target
}

// Registry holds the delivery counters and the send latency timer.
func (m *Manager) Registry() metrics.Registry {
	return m.registry
}

// EnsureConnected reports whether a usable connection exists, connecting
// first if there is none.
func (m *Manager) EnsureConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connect()
}

// Send delivers an encoded batch of points. On any failure the connection is
// discarded so that the next call starts over with a fresh one.
func (m *Manager) Send(payload []byte, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connect() {
		m.dropped.Inc(int64(points))
		return ErrNotConnected
	}
	start := time.Now()
	var err error
	if m.target.HTTPFamily() {
		err = m.post(payload)
	} else {
		err = m.write(payload)
	}
	m.latency.UpdateSince(start)
	if err != nil {
		m.reset()
		m.errored.Inc(int64(points))
		return err
	}
	m.sent.Inc(int64(points))
	return nil
}

// Drop counts points that were discarded without being sent.
func (m *Manager) Drop(points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped.Inc(int64(points))
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Sent:    m.sent.Count(),
		Dropped: m.dropped.Count(),
		Errored: m.errored.Count(),
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.conn != nil {
		err = m.conn.Close()
		m.conn = nil
	}
	m.reset()
	return err
}

// connect must be called with mu held.
func (m *Manager) connect() bool {
	if m.target.HTTPFamily() {
		if m.client == nil {
			m.client = m.newClient()
		}
		return true
	}
	if m.conn != nil {
		return true
	}
	// a failed attempt uses up the slot as well
	if !m.reconnect.AllowN(m.now(), 1) {
		return false
	}
	m.logger.Info("connecting", zap.String("addr", m.target.Addr()))
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	defer cancel()
	conn, err := m.dial(ctx, "tcp", m.target.Addr())
	if err != nil {
		m.logger.Error("error connecting socket", zap.String("addr", m.target.Addr()), zap.Error(err))
		return false
	}
	m.conn = conn
	return true
}

func (m *Manager) newClient() *http.Client {
	return &http.Client{
		Timeout: m.requestTimeout,
		Transport: &http.Transport{
			DialContext:         m.dial,
			TLSClientConfig:     m.tlsConfig,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// reset must be called with mu held.
func (m *Manager) reset() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.client != nil {
		m.client.CloseIdleConnections()
		m.client = nil
	}
}

func (m *Manager) write(payload []byte) error {
	if err := m.conn.SetWriteDeadline(time.Now().Add(m.requestTimeout)); err != nil {
		return err
	}
	_, err := m.conn.Write(payload)
	return err
}

func (m *Manager) post(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "kairosdb-writer/0.1.0")
	if m.username != "" && m.password != "" {
		req.SetBasicAuth(m.username, m.password)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	m.logger.Debug("kairosdb response", zap.Int("status", resp.StatusCode))
	if resp.StatusCode != http.StatusNoContent {
		return &StatusError{URL: m.url, Status: resp.Status, Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}
