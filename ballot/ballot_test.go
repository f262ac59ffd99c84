package ballot

import (
	"testing"

	"github.com/google/uuid"
)

func TestGeneratorStrictlyIncreasing(t *testing.T) {
	g := NewGenerator(uuid.New())

	prev := Zero
	for i := 0; i < 1000; i++ {
		b := g.Next(Zero)
		if !prev.Less(b) {
			t.Fatalf("ballot %s did not sort after previous ballot %s", b, prev)
		}
		prev = b
	}
}

func TestGeneratorRespectsFloor(t *testing.T) {
	g := NewGenerator(uuid.New())
	floor := g.Next(Zero)

	b := NewGenerator(uuid.New()).Next(floor)
	if !floor.Less(b) {
		t.Fatalf("expected ballot minted with floor %s to sort after it, got %s", floor, b)
	}
}

func TestDistinctGeneratorsDoNotCollide(t *testing.T) {
	a := NewGenerator(uuid.New())
	b := NewGenerator(uuid.New())

	seen := make(map[Ballot]bool)
	for i := 0; i < 200; i++ {
		ba := a.Next(Zero)
		bb := b.Next(Zero)
		if seen[ba] || seen[bb] {
			t.Fatalf("ballot collision detected")
		}
		seen[ba] = true
		seen[bb] = true
	}
}

func TestCompareAndLess(t *testing.T) {
	g := NewGenerator(uuid.New())
	low := g.Next(Zero)
	high := g.Next(Zero)

	if low.Compare(low) != 0 {
		t.Errorf("expected ballot to compare equal to itself")
	}
	if low.Compare(high) >= 0 {
		t.Errorf("expected low < high, got Compare=%d", low.Compare(high))
	}
	if !low.Less(high) {
		t.Errorf("expected low.Less(high) to be true")
	}
	if high.Less(low) {
		t.Errorf("expected high.Less(low) to be false")
	}
}

func TestZeroIsZero(t *testing.T) {
	var z Ballot
	if !z.IsZero() {
		t.Errorf("expected zero-value Ballot to report IsZero")
	}
	if Zero.Micros() != 0 {
		t.Errorf("expected Zero.Micros() == 0, got %d", Zero.Micros())
	}
}
