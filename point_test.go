package kairosdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTelnetLine(t *testing.T) {
	cases := []struct {
		point *Point
		out   string
	}{
		{
			point: &Point{Name: "collectd.load.load.shortterm", Time: time.Unix(1442868137, 0), Value: 0.5},
			out:   "put collectd.load.load.shortterm 1442868137 0.500000",
		},
		{
			point: &Point{Name: "collectd.cpu.0.cpu.idle.value", Time: time.Unix(1442868137, 0), Value: 11,
				Tags: map[string]string{"role": "web01", "host": "localhost"}},
			out: "put collectd.cpu.0.cpu.idle.value 1442868137 11.000000 host=localhost role=web01",
		},
	}
	assert := assert.New(t)
	for _, tc := range cases {
		assert.Equal(tc.out, tc.point.EncodeTelnetLine())
	}
}

func TestEncodeTelnetBatch(t *testing.T) {
	points := []Point{
		{Name: "a.rx", Time: time.Unix(10, 0), Value: 1, Tags: map[string]string{"host": "h"}},
		{Name: "a.tx", Time: time.Unix(10, 0), Value: 2, Tags: map[string]string{"host": "h"}},
	}
	out := string(EncodeTelnet(points))
	assert.Equal(t, "put a.rx 10 1.000000 host=h\nput a.tx 10 2.000000 host=h\n", out)
}

func TestEncodeJSON(t *testing.T) {
	points := []Point{
		{Name: "collectd.cpu.0.cpu.softirq.value", Time: time.Unix(1442868137, 0), Value: 11,
			Tags: map[string]string{"host": "localhost", "role": "web01"}},
		{Name: "collectd.cpu.0.cpu.softirq.value_rate", Time: time.Unix(1442868137, 0), Value: 1.5},
	}
	body := EncodeJSON(points)
	assert.Equal(t, `[{"name":"collectd.cpu.0.cpu.softirq.value","datapoints":[[1442868137000,11]],"tags":{"host":"localhost","role":"web01"}},`+
		`{"name":"collectd.cpu.0.cpu.softirq.value_rate","datapoints":[[1442868137000,1.5]],"tags":{}}]`, string(body))

	var decoded []struct {
		Name       string            `json:"name"`
		Datapoints [][]float64       `json:"datapoints"`
		Tags       map[string]string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(1442868137000), decoded[0].Datapoints[0][0])
	assert.Equal(t, "web01", decoded[0].Tags["role"])
}

func TestEncodeJSONEscapes(t *testing.T) {
	points := []Point{{Name: `disk "sda"`, Time: time.Unix(1, 0), Value: 1, Tags: map[string]string{"k": `a\b`}}}
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(EncodeJSON(points), &decoded))
	assert.Equal(t, `disk "sda"`, decoded[0]["name"])
}

func TestEncodeJSONEmpty(t *testing.T) {
	assert.Equal(t, "[]", string(EncodeJSON(nil)))
}
