// Package emitters holds the destinations a report.Reporter can emit the
// writer's own metrics to.
package emitters

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/juvenn/kairosdb-writer/report"
	"github.com/rcrowley/go-metrics"
)

// Periodically report to io writer
func NewIOReporter(writer io.Writer, reg metrics.Registry, interval time.Duration, opts ...report.Option) (*report.Reporter, error) {
	opts = append(opts, report.WithEmitters(NewIOEmitter(writer)))
	return report.NewReporter(reg, interval, opts...)
}

// Emit metrics to file, appending to it.
func NewFileEmitter(path string) (*fileEmitter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewIOEmitter(file), nil
}

// Emit metrics to io writer
func NewIOEmitter(writer io.Writer) *fileEmitter {
	return &fileEmitter{
		writer: writer,
		enc:    json.NewEncoder(writer),
	}
}

// Emit metrics to stdout, which is never closed.
func NewStdoutEmitter() *fileEmitter {
	return NewIOEmitter(struct{ io.Writer }{os.Stdout})
}

// Emit metrics as json lines.
type fileEmitter struct {
	mu     sync.Mutex
	writer io.Writer
	enc    *json.Encoder
}

func (e *fileEmitter) Emit(data ...report.Datum) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range data {
		if err := e.enc.Encode(&data[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *fileEmitter) Close() error {
	if closer, ok := e.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
