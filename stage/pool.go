package stage

import (
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Pool is a single named stage: a bounded worker pool plus an age-based
// drop policy.
type Pool struct {
	name      string
	timeout   time.Duration
	onDropped func()
	inner     *pool.Pool
}

// New creates a stage named name, running at most maxGoroutines tasks
// concurrently. A task waiting longer than timeout before it starts
// running is dropped rather than executed.
func New(name string, maxGoroutines int, timeout time.Duration, onDropped func()) *Pool {
	p := pool.New().WithMaxGoroutines(maxGoroutines)
	return &Pool{
		name:      name,
		timeout:   timeout,
		onDropped: onDropped,
		inner:     p,
	}
}

// Submit enqueues task. Submit itself may block the caller once the stage
// is saturated, mirroring a bounded FIFO queue's backpressure.
func (p *Pool) Submit(task func()) {
	enqueuedAt := time.Now()
	p.inner.Go(func() {
		if p.timeout > 0 && time.Since(enqueuedAt) > p.timeout {
			if p.onDropped != nil {
				p.onDropped()
			}
			return
		}
		task()
	})
}

// Name returns the stage's name, used for logging and metrics labelling.
func (p *Pool) Name() string { return p.name }

// Close drains the stage, waiting for all in-flight and already-admitted
// tasks to finish.
func (p *Pool) Close() { p.inner.Wait() }
