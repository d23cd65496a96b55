package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/juvenn/kairosdb-writer/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memWriter struct {
	mu      sync.Mutex
	samples []kairosdb.Sample
}

func (w *memWriter) Write(s kairosdb.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
}

func (w *memWriter) Stats() transport.Stats {
	return transport.Stats{Sent: 7, Dropped: 1}
}

const collectdBody = `[
 {"values":[1901474177,null],"dstypes":["derive","derive"],"dsnames":["rx","tx"],
  "time":1280959128.5,"interval":10.000,"host":"leeloo.octo.it","plugin":"interface",
  "plugin_instance":"","type":"if_octets","type_instance":"eth0"},
 {"values":[0.5,1,2],"dstypes":["gauge","gauge","gauge"],"dsnames":["shortterm","midterm","longterm"],
  "time":1280959128,"interval":10,"host":"leeloo.octo.it","plugin":"load",
  "plugin_instance":"","type":"load","type_instance":""}
]`

func TestParseCollectd(t *testing.T) {
	samples, err := ParseCollectd([]byte(collectdBody))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	s := samples[0]
	assert := assert.New(t)
	assert.Equal("leeloo.octo.it", s.Host)
	assert.Equal("interface", s.Plugin)
	assert.Equal("if_octets", s.Type)
	assert.Equal("eth0", s.TypeInstance)
	assert.Equal(time.Unix(1280959128, 500000000), s.Time)
	assert.Equal(10*time.Second, s.Interval)
	require.Len(t, s.Values, 2)
	assert.Equal(1901474177.0, *s.Values[0])
	assert.Nil(s.Values[1])

	assert.Equal([]*float64{ptr(0.5), ptr(1), ptr(2)}, samples[1].Values)
}

func ptr(f float64) *float64 { return &f }

func TestParseCollectdErrors(t *testing.T) {
	for _, body := range []string{
		``,
		`{"values":[1]}`,
		`[1]`,
		`[{"plugin":"load","type":"load"}]`,
		`[{"plugin":"load","values":[1]}]`,
		`[{"plugin":"load","type":"load","values":["1"]}]`,
	} {
		_, err := ParseCollectd([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestHandleCollectd(t *testing.T) {
	mw := &memWriter{}
	h := NewServer("", mw, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/collectd", strings.NewReader(collectdBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"samples":2}`, rec.Body.String())
	assert.Len(t, mw.samples, 2)

	req = httptest.NewRequest(http.MethodPost, "/collectd", strings.NewReader(`[{"values":`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, mw.samples, 2, "nothing written from a malformed body")
}

func TestHandleCollectdTooLarge(t *testing.T) {
	mw := &memWriter{}
	srv := NewServer("", mw, nil)
	srv.maxBodySize = 64
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/collectd", strings.NewReader(collectdBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"body exceeds 64 bytes"}`, rec.Body.String())
	assert.Empty(t, mw.samples)

	small := `[{"values":[1],"plugin":"load","type":"load"}]`
	req = httptest.NewRequest(http.MethodPost, "/collectd", strings.NewReader(small))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "a body within the limit is accepted")
	assert.Len(t, mw.samples, 1)
}

func TestHandleHealth(t *testing.T) {
	h := NewServer("", &memWriter{}, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string          `json:"status"`
		Stats  transport.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, transport.Stats{Sent: 7, Dropped: 1}, body.Stats)
}

func TestServerStartStop(t *testing.T) {
	mw := &memWriter{}
	srv := NewServer("127.0.0.1:0", mw, nil)
	require.NoError(t, srv.Start())

	resp, err := http.Post("http://"+srv.Addr().String()+"/collectd", "application/json", strings.NewReader(collectdBody))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
