package metrics

import (
	"testing"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/topology"
)

func TestOnHintWrittenIncrementsCounter(t *testing.T) {
	s := NewSink("sink-test-hints")
	cb := s.OnHintWritten()
	cb(topology.Endpoint("n1"))
	cb(topology.Endpoint("n2"))

	require.Equal(t, uint64(2), vm.GetOrCreateCounter(name("sink-test-hints", "total_hints")).Get())
}

func TestReadRepairCounters(t *testing.T) {
	s := NewSink("sink-test-repair")
	s.ReadRepairAttempted()
	s.ReadRepairAttempted()
	s.ReadRepairRepairedBlocking()

	require.Equal(t, uint64(2), s.readRepairAttempted.Get())
	require.Equal(t, uint64(1), s.readRepairRepairedBlocking.Get())
}

func TestDroppedMessagesPerVerb(t *testing.T) {
	s := NewSink("sink-test-dropped")
	s.DroppedMessages(messaging.VerbMutation)
	s.DroppedMessages(messaging.VerbMutation)
	s.DroppedMessages(messaging.VerbReadCommand)

	require.Equal(t, uint64(2), vm.GetOrCreateCounter(`coordinator_dropped_messages_total{verb="MUTATION"}`).Get())
	require.Equal(t, uint64(1), vm.GetOrCreateCounter(`coordinator_dropped_messages_total{verb="READ_COMMAND"}`).Get())
}
