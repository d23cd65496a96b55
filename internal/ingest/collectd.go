package ingest

import (
	"errors"
	"fmt"
	"time"

	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// ParseCollectd decodes the JSON body posted by collectd's write_http plugin:
//
//	[{"values":[1901474177,null],"dstypes":["derive","gauge"],"dsnames":["rx","tx"],
//	  "time":1280959128.123,"interval":10,"host":"leeloo","plugin":"interface",
//	  "plugin_instance":"","type":"if_octets","type_instance":"eth0"}]
//
// dstypes and dsnames are ignored, data sources come from the type registry.
func ParseCollectd(body []byte) ([]kairosdb.Sample, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}
	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	samples := make([]kairosdb.Sample, 0, len(items))
	for i, item := range items {
		s, err := parseSample(item)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseSample(v *fastjson.Value) (kairosdb.Sample, error) {
	if v.Type() != fastjson.TypeObject {
		return kairosdb.Sample{}, errors.New("not an object")
	}
	s := kairosdb.Sample{
		Host:           string(v.GetStringBytes("host")),
		Plugin:         string(v.GetStringBytes("plugin")),
		PluginInstance: string(v.GetStringBytes("plugin_instance")),
		Type:           string(v.GetStringBytes("type")),
		TypeInstance:   string(v.GetStringBytes("type_instance")),
		Time:           kairosdb.Unix(v.GetFloat64("time")),
		Interval:       time.Duration(v.GetFloat64("interval") * float64(time.Second)),
	}
	if s.Plugin == "" || s.Type == "" {
		return s, errors.New("missing plugin or type")
	}
	values := v.GetArray("values")
	if values == nil {
		return s, errors.New("missing values")
	}
	s.Values = make([]*float64, len(values))
	for i, value := range values {
		if value.Type() == fastjson.TypeNull {
			continue
		}
		f, err := value.Float64()
		if err != nil {
			return s, fmt.Errorf("value %d: %w", i, err)
		}
		s.Values[i] = &f
	}
	return s, nil
}
