package main

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"duralog/dl"
)

func getServiceKey(ctx *fasthttp.RequestCtx) (string, string, error) {
	service := ctx.UserValue("service").(string)
	if len(service) > 255 || len(service) == 0 {
		return "", "", fmt.Errorf("service name is not in range 1~255")
	}
	for _, v := range service {
		if v == 0 {
			return "", "", fmt.Errorf("0 is not allowed as a character in service name")
		}
	}
	key := ctx.UserValue("key").(string)
	if len(key) > 255 || len(key) == 0 {
		return "", "", fmt.Errorf("key is not in range 1~255")
	}
	for _, v := range key {
		if v == 0 {
			return "", "", fmt.Errorf("0 is not allowed as a character in key")
		}
	}
	return service, key, nil
}

func writeJSON(ctx *fasthttp.RequestCtx, v interface{}) {
	d, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode err: "+err.Error(), 500)
		return
	}
	ctx.SetContentType("application/json")
	_, _ = ctx.Write(d)
}

// InvokeHandler submits one invocation. The submission gets a fresh
// invocation id and an ingress lane sequence number; resubmitting the
// same HTTP request therefore creates a new invocation - dedup guards the
// runtime's own redelivery, not HTTP client retries. With ?wait=SECONDS
// the request long-polls the completion.
func InvokeHandler(ctx *fasthttp.RequestCtx) {
	service, key, err := getServiceKey(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	handler := ctx.UserValue("handler").(string)
	if len(handler) == 0 || len(handler) > 255 {
		ctx.Error("handler is not in range 1~255", 400)
		return
	}
	wait := ctx.Request.URI().QueryArgs().GetUintOrZero("wait")

	fid := dl.GenerateFullInvocationID(service, []byte(key))
	id := fid.String()
	if wait > 0 {
		rt.watch.Attach(id)
	}
	// fasthttp reuses the body buffer after the handler returns
	arg := append([]byte(nil), ctx.PostBody()...)
	rt.SubmitIngressInvoke(fid, handler, arg)

	if wait == 0 {
		ctx.SetStatusCode(202)
		writeJSON(ctx, map[string]string{"invocation_id": id})
		return
	}
	res := rt.watch.Listen(id, wait)
	if res == nil {
		ctx.SetStatusCode(408)
		writeJSON(ctx, map[string]string{"invocation_id": id, "status": "pending"})
		return
	}
	writeJSON(ctx, map[string]string{
		"invocation_id": id,
		"status":        "done",
		"result":        string(res.Result),
		"failure":       res.Failure,
	})
}

// GetInvocationHandler resolves a 33-character invocation id string.
func GetInvocationHandler(ctx *fasthttp.RequestCtx) {
	id, err := dl.ParseInvocationID(ctx.UserValue("id").(string))
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	d, closer, err := rt.store.db.Get(resultKey(id))
	if err == pebble.ErrNotFound {
		writeJSON(ctx, map[string]string{"invocation_id": id.String(), "status": "pending"})
		return
	}
	if err != nil {
		ctx.Error("db read err: "+err.Error(), 500)
		return
	}
	var res dl.CompletionResult
	_, err = res.UnmarshalMsg(d)
	_ = closer.Close()
	if err != nil {
		ctx.Error("db decode err: "+err.Error(), 500)
		return
	}
	writeJSON(ctx, map[string]string{
		"invocation_id": id.String(),
		"status":        "done",
		"result":        string(res.Result),
		"failure":       res.Failure,
	})
}

// GetStateHandler lists the user state of one service instance in key
// order.
func GetStateHandler(ctx *fasthttp.RequestCtx) {
	service, key, err := getServiceKey(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	sid := dl.NewServiceID(service, []byte(key))
	lo, hi := stateRange(sid)
	iter, err := rt.store.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		ctx.Error("db read err: "+err.Error(), 500)
		return
	}
	defer iter.Close()
	state := map[string]string{}
	for iter.First(); iter.Valid(); iter.Next() {
		state[string(iter.Key()[len(lo):])] = string(iter.Value())
	}
	writeJSON(ctx, state)
}

// GetLedgerHandler dumps the dedup ledger of one partition.
func GetLedgerHandler(ctx *fasthttp.RequestCtx) {
	pid, err := strconv.ParseUint(ctx.UserValue("partition").(string), 10, 64)
	if err != nil {
		ctx.Error("failed to parse partition "+err.Error(), 400)
		return
	}
	lo, hi := dedupRange(pid)
	iter, err := rt.store.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		ctx.Error("db read err: "+err.Error(), 500)
		return
	}
	defer iter.Close()
	type laneEntry struct {
		Lane      string `json:"lane"`
		SeqNumber uint64 `json:"seq_number"`
	}
	entries := []laneEntry{}
	for iter.First(); iter.Valid(); iter.Next() {
		src := dedupSourceFromKey(iter.Key())
		var lane string
		switch src.Kind {
		case SourcePartition:
			lane = fmt.Sprintf("partition-%d", src.ProducingPartitionID)
		case SourceIngress:
			lane = "ingress-" + src.IngressID
		}
		entries = append(entries, laneEntry{Lane: lane, SeqNumber: ByteToUint64(iter.Value())})
	}
	writeJSON(ctx, entries)
}

var metricsHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

func MetricsHandler(ctx *fasthttp.RequestCtx) {
	metricsHandler(ctx)
}
