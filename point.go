package kairosdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// A point is one value of one sample, named and tagged the way KairosDB
// stores it.
type Point struct {
	Name  string
	Time  time.Time
	Value float64
	Tags  map[string]string
}

// Encode point as a telnet put command, without the line terminator.
//
//	put collectd.cpu.0.cpu.idle.value 1442868137 11.000000 host=localhost role=web
func (p *Point) EncodeTelnetLine() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("put %s %d %f", p.Name, p.Time.Unix(), p.Value))
	for _, e := range sortByKey(p.Tags) {
		sb.WriteString(" ")
		sb.WriteString(e.Key)
		sb.WriteString("=")
		sb.WriteString(e.Val)
	}
	return sb.String()
}

// Encode a batch as newline separated put commands. The batch is terminated
// by an empty line, so the payload always ends with "\n".
func EncodeTelnet(points []Point) []byte {
	var sb strings.Builder
	for i := range points {
		sb.WriteString(points[i].EncodeTelnetLine())
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Encode a batch as the JSON body of POST /api/v1/datapoints:
//
//	[{"name":"cpu.value","datapoints":[[1442868137000,11]],"tags":{"host":"localhost"}}]
//
// An empty batch encodes to "[]".
func EncodeJSON(points []Point) []byte {
	var a fastjson.Arena
	arr := a.NewArray()
	for i := range points {
		p := &points[i]
		pair := a.NewArray()
		pair.SetArrayItem(0, a.NewNumberString(strconv.FormatInt(p.Time.UnixMilli(), 10)))
		pair.SetArrayItem(1, a.NewNumberFloat64(p.Value))
		datapoints := a.NewArray()
		datapoints.SetArrayItem(0, pair)

		tags := a.NewObject()
		for _, e := range sortByKey(p.Tags) {
			tags.Set(e.Key, a.NewString(e.Val))
		}

		obj := a.NewObject()
		obj.Set("name", a.NewString(p.Name))
		obj.Set("datapoints", datapoints)
		obj.Set("tags", tags)
		arr.SetArrayItem(i, obj)
	}
	return arr.MarshalTo(nil)
}

type entry struct {
	Key string
	Val string
}

// Sort map by key
func sortByKey(m map[string]string) []entry {
	pairs := make([]entry, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, entry{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key < pairs[j].Key
	})
	return pairs
}
