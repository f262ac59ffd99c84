package quorum

import (
	"sync"
	"testing"
	"time"

	"github.com/latticedb/coordinator/topology"
)

func TestHandlerSucceedsAtBlockFor(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 2, time.Second)

	h.OnResponse("a")
	h.OnResponse("b")

	if err := h.Await(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestHandlerDoneReflectsCompletion(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 2, time.Second)

	if h.Done() {
		t.Fatal("expected not done before blockFor is reached")
	}

	h.OnResponse("a")
	h.OnResponse("b")

	if !h.Done() {
		t.Fatal("expected done once blockFor is reached")
	}
}

func TestHandlerIdempotentResponse(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 3, 50*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnResponse("a")
		}()
	}
	wg.Wait()

	if got := h.Received(); got != 1 {
		t.Fatalf("expected received count 1 after repeated acks from the same sender, got %d", got)
	}

	// not enough distinct senders yet, so it should eventually time out
	err := h.Await()
	if err == nil {
		t.Fatalf("expected timeout, got success")
	}
}

func TestHandlerFailsOnUnreachable(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	// 1 unreachable target, blockFor 3 (CL=ALL): a single failure leaves
	// only 1 possible success out of the 2 remaining targets, which is
	// still enough... use blockFor=3 so no failures are tolerable.
	h := NewWriteHandler(targets, 1, topology.CLAll, "ks", topology.WriteTypeSimple, 3, time.Second)

	h.OnResponse("a")
	h.OnResponse("b")

	err := h.Await()
	if err == nil {
		t.Fatalf("expected failure due to unreachable target pushing below blockFor")
	}
}

func TestHandlerTimesOut(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 2, 20*time.Millisecond)

	h.OnResponse("a")

	err := h.Await()
	if err == nil {
		t.Fatalf("expected write timeout")
	}
}

func TestHandlerAssureSufficientLiveNodes(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 2, time.Second)

	if err := h.AssureSufficientLiveNodes(1); err == nil {
		t.Fatalf("expected unavailable error for insufficient live nodes")
	}
	if err := h.AssureSufficientLiveNodes(2); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestWatchIdealConsistency(t *testing.T) {
	targets := []topology.Endpoint{"a", "b", "c"}
	h := NewWriteHandler(targets, 0, topology.CLQuorum, "ks", topology.WriteTypeSimple, 2, time.Second)

	reached := make(chan struct{})
	h.WatchIdealConsistency(3, func() { close(reached) })

	h.OnResponse("a")
	h.OnResponse("b")
	if err := h.Await(); err != nil {
		t.Fatalf("expected success at blockFor=2, got %v", err)
	}

	h.OnResponse("c")

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatalf("expected ideal-consistency callback to fire after third ack")
	}
}
