package handlers

import (
	"errors"
	"testing"

	protoerr "github.com/alxayo/go-rtmp/internal/errors"
)

func TestChain(t *testing.T) {
	var order []string
	a := func() error { order = append(order, "a"); return nil }
	b := func() error { order = append(order, "b"); return nil }
	if err := Chain(a, b)(); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestChainShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	a := func() error { return boom }
	b := func() error { ran = true; return nil }
	if err := Chain(a, b)(); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran {
		t.Fatalf("b should not have run")
	}
}

func TestChainAll(t *testing.T) {
	count := 0
	inc := func() error { count++; return nil }
	if err := ChainAll(inc, inc, inc)(); err != nil {
		t.Fatalf("chainAll: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 runs, got %d", count)
	}
}

func TestWhileOkStopsOnExhausted(t *testing.T) {
	n := 0
	step := func() error {
		n++
		if n == 3 {
			return protoerr.ErrStreamGotExhausted
		}
		return nil
	}
	if err := WhileOk(nil, step)(); err != nil {
		t.Fatalf("expected nil (clean exhaustion), got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 steps, got %d", n)
	}
}

func TestWhileOkPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	step := func() error { return boom }
	if err := WhileOk(nil, step)(); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestWhileOkRunsSetupOnce(t *testing.T) {
	setupRuns := 0
	setup := func() error { setupRuns++; return nil }
	n := 0
	step := func() error {
		n++
		if n == 2 {
			return protoerr.ErrStreamGotExhausted
		}
		return nil
	}
	if err := WhileOk(setup, step)(); err != nil {
		t.Fatalf("whileOk: %v", err)
	}
	if setupRuns != 1 {
		t.Fatalf("expected setup to run exactly once, got %d", setupRuns)
	}
}

func TestWrapMiddlewareObservesEntryExit(t *testing.T) {
	var events []string
	mw := func(inner Handler) Handler {
		return func() error {
			events = append(events, "enter")
			err := inner()
			events = append(events, "exit")
			return err
		}
	}
	inner := func() error { events = append(events, "inner"); return nil }
	if err := Wrap(mw, inner)(); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	want := []string{"enter", "inner", "exit"}
	for i, w := range want {
		if events[i] != w {
			t.Fatalf("event %d: want %q got %q (%v)", i, w, events[i], events)
		}
	}
}

func TestMapErrRemapsError(t *testing.T) {
	inner := func() error { return errors.New("raw") }
	mapped := MapErr(inner, func(err error) error {
		return protoerr.NewProtocolError("mapped", err)
	})
	err := mapped()
	if !protoerr.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestMapErrPassesThroughSuccess(t *testing.T) {
	inner := func() error { return nil }
	called := false
	mapped := MapErr(inner, func(err error) error { called = true; return err })
	if err := mapped(); err != nil {
		t.Fatalf("mapErr: %v", err)
	}
	if called {
		t.Fatalf("onErr must not run on success")
	}
}

type fakeAcc struct {
	bytes  uint32
	window uint32
}

func (f *fakeAcc) AddInboundBytes(n uint32)  { f.bytes += n }
func (f *fakeAcc) InboundBytes() uint32      { return f.bytes }
func (f *fakeAcc) ResetInboundBytes()        { f.bytes = 0 }
func (f *fakeAcc) WindowAckSize() uint32     { return f.window }

func TestAckMiddlewareEmitsAfterThreshold(t *testing.T) {
	acc := &fakeAcc{window: 800} // threshold = 100
	var acked []uint32
	send := func(total uint32) error { acked = append(acked, total); return nil }
	read := func() (int, error) { return 60, nil }
	h := AckMiddleware(acc, send, read)

	if err := h(); err != nil {
		t.Fatalf("ack 1: %v", err)
	}
	if len(acked) != 0 {
		t.Fatalf("should not have acked yet: %v", acked)
	}
	if err := h(); err != nil {
		t.Fatalf("ack 2: %v", err)
	}
	if len(acked) != 1 || acked[0] != 120 {
		t.Fatalf("expected one ack of 120, got %v", acked)
	}
	if acc.InboundBytes() != 0 {
		t.Fatalf("counter should reset after ack, got %d", acc.InboundBytes())
	}
}

func TestAckMiddlewarePropagatesReadError(t *testing.T) {
	acc := &fakeAcc{window: 800}
	boom := errors.New("read failed")
	read := func() (int, error) { return 0, boom }
	h := AckMiddleware(acc, nil, read)
	if err := h(); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
}
