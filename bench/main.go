package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// Load generator for the ingress API: fires invoke submissions at random
// service keys and reports throughput.
func BenchmarkInvoke(u, service, handler string, keys, parallel, nPerThread int, wait bool) {
	c := fasthttp.Client{
		MaxConnsPerHost: 50000,
	}
	uris := make([]*fasthttp.URI, keys)
	suffix := ""
	if wait {
		suffix = "?wait=30"
	}
	for i := 0; i < keys; i++ {
		uris[i] = fasthttp.AcquireURI()
		err := uris[i].Parse(nil, []byte(fmt.Sprintf("%s/invoke/%s/%d/%s%s", u, service, i, handler, suffix)))
		if err != nil {
			panic(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			defer wg.Done()
			for j := 0; j < nPerThread; j++ {
				req := fasthttp.AcquireRequest()
				req.Header.SetMethod("POST")
				req.SetBody([]byte(`{"n":1}`))
				req.SetURI(uris[rnd.Intn(keys)])
				resp := fasthttp.AcquireResponse()
				err := c.Do(req, resp)
				if err != nil {
					panic(err)
				}
				if resp.StatusCode() != 200 && resp.StatusCode() != 202 {
					panic(fmt.Sprintf("bad status code: %v %v ", resp.StatusCode(), string(resp.Body())))
				}
				fasthttp.ReleaseRequest(req)
				fasthttp.ReleaseResponse(resp)
			}
		}()
	}
	wg.Wait()
}

func main() {
	u := flag.String("url", "http://localhost:8081", "ingress base url")
	service := flag.String("service", "echo", "service to invoke")
	handler := flag.String("handler", "echo", "handler to invoke")
	keys := flag.Int("keys", 1000, "number of distinct service keys")
	parallel := flag.Int("parallel", 100, "concurrent clients")
	n := flag.Int("n", 1000, "requests per client")
	wait := flag.Bool("wait", false, "long-poll for results")
	flag.Parse()

	start := time.Now()
	BenchmarkInvoke(*u, *service, *handler, *keys, *parallel, *n, *wait)
	total := *parallel * *n
	sec := time.Since(start).Seconds()
	log.Printf("%d invokes in %.2fs = %.0f req/s", total, sec, float64(total)/sec)
}
