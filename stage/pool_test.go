package stage

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTask(t *testing.T) {
	p := New("test", 4, time.Second, nil)
	var ran atomic.Bool
	done := make(chan struct{})

	p.Submit(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	if !ran.Load() {
		t.Errorf("expected task to run")
	}
	p.Close()
}

func TestPoolDropsAgedTask(t *testing.T) {
	var dropped atomic.Int64
	p := New("test", 1, 10*time.Millisecond, func() { dropped.Add(1) })

	block := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-block
	})
	<-started

	// Submit blocks while the only worker is busy, so the second task is
	// submitted from its own goroutine.
	ran := make(chan struct{}, 1)
	submitted := make(chan struct{})
	go func() {
		p.Submit(func() {
			ran <- struct{}{}
		})
		close(submitted)
	}()

	time.Sleep(30 * time.Millisecond)
	close(block)
	<-submitted
	p.Close()

	select {
	case <-ran:
		t.Errorf("expected the second task to be dropped, not run")
	default:
	}
	if dropped.Load() != 1 {
		t.Errorf("expected 1 dropped task, got %d", dropped.Load())
	}
}

func TestPoolName(t *testing.T) {
	p := New("mutation", 1, time.Second, nil)
	if p.Name() != "mutation" {
		t.Errorf("expected name 'mutation', got %q", p.Name())
	}
}
