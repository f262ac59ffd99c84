package metrics

import (
	"fmt"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/topology"
)

// Sink owns the process-wide VictoriaMetrics counters/gauges spec.md §6's
// MBean surface exposes. It has no knowledge of which package produced an
// event; every producer (hints.Submitter, read.Executor, paxos.Driver,
// messaging.Messenger) calls into Sink through a small callback registered
// at wiring time, the same decoupling the teacher used for
// Submitter.OnHintWritten.
type Sink struct {
	prefix string

	totalHints                   *vm.Counter
	readRepairAttempted          *vm.Counter
	readRepairRepairedBlocking   *vm.Counter
	readRepairRepairedBackground *vm.Counter
	paxosContention              *vm.Counter
}

// NewSink registers a fresh set of metrics under prefix (e.g. the node's
// endpoint), so multiple coordinator nodes running in the same process
// during tests don't collide in the default VictoriaMetrics registry.
func NewSink(prefix string) *Sink {
	return &Sink{
		prefix:                       prefix,
		totalHints:                   vm.NewCounter(name(prefix, "total_hints")),
		readRepairAttempted:          vm.NewCounter(name(prefix, "read_repair_attempted")),
		readRepairRepairedBlocking:   vm.NewCounter(name(prefix, "read_repair_repaired_blocking")),
		readRepairRepairedBackground: vm.NewCounter(name(prefix, "read_repair_repaired_background")),
		paxosContention:              vm.NewCounter(name(prefix, "paxos_contention")),
	}
}

func name(prefix, metric string) string {
	return fmt.Sprintf(`coordinator_%s{node=%q}`, metric, prefix)
}

// RegisterHintsInProgressGauge exposes a live gauge backed by getter, which
// callers wire to hints.Submitter.TotalHintsInProgress so the gauge always
// reads the Submitter's own authoritative counter rather than a mirrored
// copy that could drift.
func (s *Sink) RegisterHintsInProgressGauge(getter func() int64) {
	vm.NewGauge(name(s.prefix, "total_hints_in_progress"), func() float64 {
		return float64(getter())
	})
}

// OnHintWritten builds the callback hints.Submitter.OnHintWritten expects.
func (s *Sink) OnHintWritten() func(topology.Endpoint) {
	return func(topology.Endpoint) { s.totalHints.Inc() }
}

// ReadRepairAttempted is wired to read.Executor.OnReadRepair's first argument.
func (s *Sink) ReadRepairAttempted() { s.readRepairAttempted.Inc() }

// ReadRepairRepairedBlocking is wired to read.Executor.OnReadRepair's
// second argument.
func (s *Sink) ReadRepairRepairedBlocking() { s.readRepairRepairedBlocking.Inc() }

// ReadRepairRepairedBackground counts a repair write-back that completed
// after the client-facing read already returned (read.Executor has no
// hook that reports a background repair; this is exposed for callers that
// detect it out of band).
func (s *Sink) ReadRepairRepairedBackground() { s.readRepairRepairedBackground.Inc() }

// PaxosContention is wired to paxos.WithContentionMetric.
func (s *Sink) PaxosContention() { s.paxosContention.Inc() }

// DroppedMessages records a per-verb dropped-message count, called
// alongside messaging.Messenger.IncrementDroppedMessages wherever a driver
// already calls that (messaging.Fake and rpc/transport keep their own
// in-memory counters for tests; this mirrors the same events into
// VictoriaMetrics for production scraping).
func (s *Sink) DroppedMessages(verb messaging.Verb) {
	vm.GetOrCreateCounter(fmt.Sprintf(`coordinator_dropped_messages_total{verb=%q}`, verb.String())).Inc()
}
