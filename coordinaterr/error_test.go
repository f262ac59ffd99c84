package coordinaterr

import (
	"testing"

	"github.com/latticedb/coordinator/topology"
)

func TestUnavailableError(t *testing.T) {
	err := Unavailable(topology.CLQuorum, 1, 2)
	if err.Kind != KindUnavailable {
		t.Errorf("expected KindUnavailable, got %s", err.Kind)
	}
	if err.Error() == "" {
		t.Errorf("expected non-empty error message")
	}
}

func TestWriteTimeoutCarriesWriteType(t *testing.T) {
	err := WriteTimeout(topology.WriteTypeCAS, topology.CLSerial, 1, 2)
	if err.WriteType != topology.WriteTypeCAS {
		t.Errorf("expected WriteTypeCAS, got %s", err.WriteType)
	}
	if err.Received != 1 || err.BlockFor != 2 {
		t.Errorf("unexpected received/blockFor: %d/%d", err.Received, err.BlockFor)
	}
}

func TestAsRoundTrips(t *testing.T) {
	var err error = Overloaded("too many hints")
	ce, ok := As(err)
	if !ok {
		t.Fatalf("expected As to succeed")
	}
	if ce.Kind != KindOverloaded {
		t.Errorf("expected KindOverloaded, got %s", ce.Kind)
	}
}
