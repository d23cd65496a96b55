// Package ingest accepts samples over HTTP and hands them to the writer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/juvenn/kairosdb-writer/transport"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 8 << 20

// SampleWriter is the part of kairosdb.Writer the server needs.
type SampleWriter interface {
	Write(s kairosdb.Sample)
	Stats() transport.Stats
}

type Server struct {
	addr        string
	maxBodySize int64
	writer      SampleWriter
	logger      *zap.Logger
	server      *http.Server
	listener    net.Listener
	startTime   time.Time
}

func NewServer(addr string, writer SampleWriter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, maxBodySize: defaultMaxBodySize, writer: writer, logger: logger}
}

// Handler routes POST /collectd and GET /health.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/collectd", s.handleCollectd)
	r.GET("/health", s.handleHealth)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.startTime = time.Now()
	s.logger.Info("accepting samples", zap.String("addr", listener.Addr().String()))
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ingest server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the address actually listened on, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleCollectd(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	samples, err := ParseCollectd(body)
	if err != nil {
		s.logger.Debug("malformed collectd body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, sample := range samples {
		s.writer.Write(sample)
	}
	c.JSON(http.StatusOK, gin.H{"samples": len(samples)})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"stats":  s.writer.Stats(),
	})
}
