package rate

import (
	"sync"
	"testing"
	"time"

	"github.com/juvenn/kairosdb-writer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	valueDS  = []types.DataSource{{Name: "value", Kind: types.Derive}}
	qcacheDS = []types.DataSource{
		{Name: "hits", Kind: types.Counter},
		{Name: "inserts", Kind: types.Counter},
		{Name: "queries_in_cache", Kind: types.Gauge},
	}
)

func vals(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		v := vs[i]
		out[i] = &v
	}
	return out
}

func floats(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		out = append(out, *v)
	}
	return out
}

func names(ds []types.DataSource) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestConvertRate(t *testing.T) {
	c := New("cpu")
	t0 := time.Unix(1442868136, 0)
	prefix := "collectd.cpu.0.cpu.softirq"

	ds, values := c.Convert("cpu", prefix, valueDS, vals(10), t0)
	assert.Empty(t, ds)
	assert.Empty(t, values)

	ds, values = c.Convert("cpu", prefix, valueDS, vals(11), t0.Add(time.Second))
	require.Len(t, ds, 1)
	assert.Equal(t, "value_rate", ds[0].Name)
	assert.Equal(t, types.Gauge, ds[0].Kind)
	assert.Equal(t, []float64{1}, floats(values))

	ds, values = c.Convert("cpu", prefix, valueDS, vals(13), t0.Add(2*time.Second))
	require.Len(t, ds, 1)
	assert.Equal(t, []float64{2}, floats(values))
}

func TestConvertZeroElapsed(t *testing.T) {
	c := New("mysql_handler")
	t0 := time.Unix(1442868136, 0)

	c.Convert("mysql_handler", "p", valueDS, vals(10), t0)
	ds, _ := c.Convert("mysql_handler", "p", valueDS, vals(11), t0)
	assert.Empty(t, ds)

	// state still holds the first observation
	assert.Equal(t, observation{value: 10, time: t0}, c.last["p.value"])
	_, values := c.Convert("mysql_handler", "p", valueDS, vals(14), t0.Add(2*time.Second))
	assert.Equal(t, []float64{2}, floats(values))
}

func TestConvertMixedKinds(t *testing.T) {
	c := New("mysql_qcache")
	t0 := time.Unix(1442868136, 0)

	ds, values := c.Convert("mysql_qcache", "q", qcacheDS, vals(10, 11, 14), t0)
	assert.Equal(t, []string{"queries_in_cache"}, names(ds))
	assert.Equal(t, []float64{14}, floats(values))

	ds, values = c.Convert("mysql_qcache", "q", qcacheDS, vals(11, 13, 16), t0.Add(time.Second))
	assert.Equal(t, []string{"hits_rate", "inserts_rate", "queries_in_cache"}, names(ds))
	assert.Equal(t, []float64{1, 2, 16}, floats(values))
}

func TestConvertDisabledPlugin(t *testing.T) {
	c := New("cpu")
	values := vals(10)
	ds, out := c.Convert("load", "p", valueDS, values, time.Unix(1, 0))
	assert.Equal(t, valueDS, ds)
	assert.Equal(t, values, out)
	assert.Equal(t, 0, c.Len())

	var nilConverter *Converter
	assert.False(t, nilConverter.Enabled("cpu"))
}

func TestConvertAbsentValue(t *testing.T) {
	c := New("cpu")
	ds, values := c.Convert("cpu", "p", valueDS, []*float64{nil}, time.Unix(1, 0))
	assert.Equal(t, valueDS, ds)
	assert.Nil(t, values[0])
	assert.Equal(t, 0, c.Len())
}

func TestConvertKeysByPrefix(t *testing.T) {
	c := New("cpu")
	t0 := time.Unix(100, 0)
	c.Convert("cpu", "cpu0", valueDS, vals(10), t0)
	ds, _ := c.Convert("cpu", "cpu1", valueDS, vals(50), t0.Add(time.Second))
	assert.Empty(t, ds, "first observation of another key")
	assert.Equal(t, 2, c.Len())
}

func TestConvertConcurrent(t *testing.T) {
	c := New("cpu")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Convert("cpu", "p", valueDS, vals(float64(j)), time.Unix(int64(j), 0))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
