package main

import (
	"sync"
	"time"

	"duralog/dl"
)

func newResultWatch() *resultWatch {
	l := sync.Mutex{}
	return &resultWatch{c: sync.NewCond(&l), l: &l, s: make(map[string]*ResultRecord)}
}

type ResultRecord struct {
	Result    *dl.CompletionResult
	Listeners int
}

// resultWatch lets ingress handlers block until an invocation result is
// published by the effect router.
type resultWatch struct {
	c *sync.Cond
	l sync.Locker
	s map[string]*ResultRecord
}

func (w *resultWatch) NotifyResult(id string, res *dl.CompletionResult) {
	w.l.Lock()
	defer w.l.Unlock()
	v, ok := w.s[id]
	if !ok { // no listeners - no need to notify
		return
	}
	v.Result = res
	w.c.Broadcast()
}

// make sure that ResultRecord won't be cleared between the time we submit
// the command and the time we start listening for the result
func (w *resultWatch) Attach(id string) {
	w.l.Lock()
	defer w.l.Unlock()

	v, ok := w.s[id]
	if !ok {
		w.s[id] = &ResultRecord{Listeners: 1}
		return
	}
	v.Listeners++
}

func (w *resultWatch) Listen(id string, dur int) *dl.CompletionResult {
	start := time.Now().Unix()
	// wake everyone at the deadline so timed-out listeners can leave
	timer := time.AfterFunc(time.Duration(dur)*time.Second, func() {
		w.l.Lock()
		w.c.Broadcast()
		w.l.Unlock()
	})
	defer timer.Stop()

	w.l.Lock()
	defer w.l.Unlock()

	for {
		v, ok := w.s[id]
		if ok && v.Result != nil {
			v.Listeners--
			if v.Listeners == 0 {
				delete(w.s, id) // no one listening - free up RAM
			}
			return v.Result
		}

		if start+int64(dur) <= time.Now().Unix() { // timeout
			if ok {
				v.Listeners--
				if v.Listeners == 0 {
					delete(w.s, id)
				}
			}
			return nil
		}
		w.c.Wait()
	}
}
