package hints

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/latticedb/coordinator/topology"
)

type fakeStore struct {
	stored map[uuid.UUID][]Mutation
	fail   bool
}

func newFakeStore() *fakeStore { return &fakeStore{stored: make(map[uuid.UUID][]Mutation)} }

func (f *fakeStore) HintFor(mutation Mutation, _ time.Time, _ time.Duration, _ uuid.UUID) (Mutation, error) {
	return mutation, nil
}

func (f *fakeStore) CalculateHintTTL(_ Mutation) time.Duration {
	return time.Hour
}

func (f *fakeStore) Store(hostID uuid.UUID, hint Mutation) error {
	if f.fail {
		return errTest
	}
	f.stored[hostID] = append(f.stored[hostID], hint)
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errTest = errString("store failure")

type fakeGCGrace struct {
	grace map[string]uint64
}

func (f *fakeGCGrace) GCGraceSeconds(table string) uint64 { return f.grace[table] }

func newSubmitterForTest() (*Submitter, *fakeStore, *topology.Memory) {
	mem := topology.NewMemory()
	mem.SetEndpoint("a", "dc1", "r1", false)
	mem.SetDowntime("a", 1000)

	store := newFakeStore()
	grace := &fakeGCGrace{grace: map[string]uint64{"t1": 3600}}

	s := NewSubmitter(store, grace, mem, mem, 10, time.Hour)
	return s, store, mem
}

func TestSubmitWritesHint(t *testing.T) {
	s, store, _ := newSubmitterForTest()
	hostID := uuid.New()

	submitted, err := s.Submit("a", hostID, Mutation{Key: "k", Tables: []string{"t1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !submitted {
		t.Fatalf("expected hint to be submitted")
	}
	if len(store.stored[hostID]) != 1 {
		t.Fatalf("expected 1 hint stored, got %d", len(store.stored[hostID]))
	}
	if s.TotalHints() != 1 {
		t.Errorf("expected totalHints=1, got %d", s.TotalHints())
	}
	if s.TotalHintsInProgress() != 0 {
		t.Errorf("expected counter released after submit, got %d", s.TotalHintsInProgress())
	}
}

func TestShouldHintRespectsGlobalDisable(t *testing.T) {
	s, _, _ := newSubmitterForTest()
	s.SetHintedHandoffEnabled(false)

	if s.ShouldHint("a") {
		t.Errorf("expected ShouldHint to be false when hinted handoff is disabled")
	}
}

func TestShouldHintRespectsDisabledDC(t *testing.T) {
	s, _, _ := newSubmitterForTest()
	s.SetDisabledDatacenters([]string{"dc1"})

	if s.ShouldHint("a") {
		t.Errorf("expected ShouldHint to be false for a disabled datacenter")
	}
}

func TestShouldHintRespectsMaxWindow(t *testing.T) {
	s, _, _ := newSubmitterForTest()
	s.SetMaxHintWindow(500 * time.Millisecond)

	if s.ShouldHint("a") {
		t.Errorf("expected ShouldHint to be false once downtime exceeds max hint window")
	}
}

func TestSubmitOverloaded(t *testing.T) {
	s, _, _ := newSubmitterForTest()
	s.SetMaxHintsInProgress(0)

	_, err := s.Submit("a", uuid.New(), Mutation{Key: "k", Tables: []string{"t1"}})
	if err == nil {
		t.Fatalf("expected overloaded error")
	}
}

func TestSubmitSkippedWhenTTLZero(t *testing.T) {
	s, store, _ := newSubmitterForTest()
	// only a mutation naming no tables falls through to the store's own
	// estimate; force TTL<=0 by naming a table whose gc-grace is zero.
	s.gcGrace = &fakeGCGrace{grace: map[string]uint64{"t0": 0}}

	submitted, err := s.Submit("a", uuid.New(), Mutation{Key: "k", Tables: []string{"t0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submitted {
		t.Errorf("expected hint to be skipped when TTL is zero")
	}
	if len(store.stored) != 0 {
		t.Errorf("expected no hint stored")
	}
}

func TestCounterAccountingPerEndpoint(t *testing.T) {
	s, _, _ := newSubmitterForTest()
	if s.InProgressFor("a") != 0 {
		t.Errorf("expected 0 in-progress hints for unused endpoint")
	}
}
