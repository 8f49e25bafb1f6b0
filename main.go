package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	_ "net/http/pprof"

	"github.com/cockroachdb/pebble"
	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v2"

	"github.com/buaazp/fasthttprouter"

	json "github.com/goccy/go-json"
)

type Config struct {
	ListenAddr string         `yaml:"ListenAddr"`
	DBPath     string         `yaml:"DBPath"`
	NodeID     string         `yaml:"NodeID"` // ingress lane id, defaults to ListenAddr
	Partitions int            `yaml:"Partitions"`
	DBOptions  pebble.Options `yaml:"DBOptions"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := Start(ctx)
	if err != nil {
		panic(err)
	}
}

var rt *Runtime

func Start(ctx context.Context) error {
	var cfg Config
	yd, err := os.ReadFile("config.yml")
	if err != nil {
		return err
	}
	err = yaml.Unmarshal(yd, &cfg)
	if err != nil {
		return err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = cfg.ListenAddr
	}
	db, err := pebble.Open(cfg.DBPath, &cfg.DBOptions)
	if err != nil {
		return err
	}
	rt = NewRuntime(cfg, db)
	registerExampleServices(rt.invoker)
	rt.Run(ctx)

	go func() {
		log.Print("START ", cfg.ListenAddr)
		router := fasthttprouter.New()

		router.POST("/invoke/:service/:key/:handler", InvokeHandler)
		router.GET("/invocations/:id", GetInvocationHandler)
		router.GET("/state/:service/:key", GetStateHandler)
		router.GET("/ledger/:partition", GetLedgerHandler)
		router.GET("/metrics", MetricsHandler)

		router.NotFound = func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(404)
		}

		s := fasthttp.Server{
			Handler:                       router.Handler,
			Concurrency:                   100000,
			MaxConnsPerIP:                 100000,
			ReadBufferSize:                10000,
			WriteBufferSize:               10000,
			DisableHeaderNamesNormalizing: true,
			NoDefaultContentType:          true,
			NoDefaultDate:                 true,
			NoDefaultServerHeader:         true,
		}
		err := s.ListenAndServe(cfg.ListenAddr)
		if err != nil {
			panic(err)
		}
	}()

	return rt.store.FlushLoop(ctx)
}

// registerExampleServices wires a few small built-in services. Real
// deployments register their own handlers before Run.
func registerExampleServices(inv *Invoker) {
	inv.Register("echo", "echo", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{Result: arg}, nil
	})

	// kv.set stores {"key": ..., "value": ...} into the instance state
	inv.Register("kv", "set", func(key, arg []byte) (HandlerOutput, error) {
		var req struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(arg, &req); err != nil {
			return HandlerOutput{}, err
		}
		return HandlerOutput{
			Result:   []byte("ok"),
			StateOps: []StateOp{{Key: []byte(req.Key), Value: []byte(req.Value)}},
		}, nil
	})

	// chain.relay forwards its argument to echo on the same key,
	// exercising the cross-partition shuffle path
	inv.Register("chain", "relay", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{
			Result: []byte("relayed"),
			OutCalls: []OutCall{{
				ServiceName: "echo",
				Key:         key,
				Handler:     "echo",
				Argument:    arg,
			}},
		}, nil
	})
}
