package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/latticedb/coordinator/topology"
)

func TestFakeSendRRInvokesCallback(t *testing.T) {
	f := NewFake("coordinator")
	f.RegisterNode("a", func(verb Verb, payload []byte, from topology.Endpoint) (Response, error) {
		if verb != VerbMutation {
			t.Errorf("expected VerbMutation, got %v", verb)
		}
		return Response{Ok: true, Payload: []byte("ack")}, nil
	})

	var mu sync.Mutex
	var got Response
	done := make(chan struct{})

	_, err := f.SendRR(VerbMutation, []byte("payload"), "a", func(from topology.Endpoint, resp Response) {
		mu.Lock()
		got = resp
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got.Payload) != "ack" {
		t.Errorf("expected payload 'ack', got %q", got.Payload)
	}
}

func TestFakeUnreachableNeverCallsBack(t *testing.T) {
	f := NewFake("coordinator")
	f.RegisterNode("a", func(verb Verb, payload []byte, from topology.Endpoint) (Response, error) {
		return Response{Ok: true}, nil
	})
	f.SetUnreachable("a", true)

	called := false
	_, err := f.SendRR(VerbMutation, nil, "a", func(from topology.Endpoint, resp Response) {
		called = true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if called {
		t.Errorf("expected unreachable endpoint to never call back")
	}
}

func TestFakeSendRRWithFailureInvokesFailureCallback(t *testing.T) {
	f := NewFake("coordinator")
	f.RegisterNode("a", func(verb Verb, payload []byte, from topology.Endpoint) (Response, error) {
		return Response{Ok: false, Err: "write failed"}, nil
	})

	done := make(chan string, 1)
	_, err := f.SendRRWithFailure(VerbMutation, nil, "a", func(from topology.Endpoint, resp Response) {
		t.Errorf("did not expect success callback")
	}, func(from topology.Endpoint, reason string) {
		done <- reason
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case reason := <-done:
		if reason != "write failed" {
			t.Errorf("expected reason 'write failed', got %q", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("failure callback never fired")
	}
}

func TestFakeIncrementDroppedMessages(t *testing.T) {
	f := NewFake("coordinator")
	f.IncrementDroppedMessages(VerbReadCommand)
	f.IncrementDroppedMessages(VerbReadCommand)

	if got := f.DroppedMessages(VerbReadCommand); got != 2 {
		t.Errorf("expected 2 dropped messages, got %d", got)
	}
}

func TestFakeGetVersionDefaultsToOne(t *testing.T) {
	f := NewFake("coordinator")
	if v := f.GetVersion("a"); v != 1 {
		t.Errorf("expected default version 1, got %d", v)
	}
	f.SetVersion("a", 3)
	if v := f.GetVersion("a"); v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
}
