package kairosdb_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	kairosdb "github.com/juvenn/kairosdb-writer"
	"github.com/juvenn/kairosdb-writer/transport"
	"github.com/juvenn/kairosdb-writer/types"
)

func Example() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		fmt.Println("path:", req.URL.Path)
		fmt.Println("body:", string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	target, err := transport.ParseTarget(srv.URL)
	if err != nil {
		fmt.Printf("Error %+v\n", err)
	}
	w, err := kairosdb.NewWriter(transport.New(target), types.Default(),
		kairosdb.WithTags(map[string]string{"role": "web01"}))
	if err != nil {
		fmt.Printf("Error %+v\n", err)
	}
	defer w.Close()

	w.Write(kairosdb.Sample{
		Host: "localhost", Plugin: "cpu", PluginInstance: "0", Type: "cpu", TypeInstance: "idle",
		Time: time.Unix(1442868137, 0), Values: kairosdb.Values(11),
	})
	fmt.Printf("%+v\n", w.Stats())
	// Output:
	// path: /api/v1/datapoints
	// body: [{"name":"collectd.cpu.0.cpu.idle.value","datapoints":[[1442868137000,11]],"tags":{"host":"localhost","role":"web01"}}]
	// {Sent:1 Dropped:0 Errored:0}
}

func ExamplePoint_EncodeTelnetLine() {
	p := kairosdb.Point{
		Name:  "collectd.load.load.shortterm",
		Time:  time.Unix(1442868137, 0),
		Value: 0.5,
		Tags:  map[string]string{"role": "web01", "host": "localhost"},
	}
	fmt.Println(p.EncodeTelnetLine())
	// Output: put collectd.load.load.shortterm 1442868137 0.500000 host=localhost role=web01
}
