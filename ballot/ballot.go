package ballot

import (
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ballot is a 16-byte, strictly-increasing Paxos proposal number. The first
// 8 bytes are a microsecond wall-clock timestamp (big endian, so byte-wise
// comparison agrees with numeric comparison); the last 8 bytes are
// node-unique entropy that breaks ties between ballots minted in the same
// microsecond, whether on one node or several.
type Ballot [16]byte

// Zero is the smallest possible Ballot. promisedBallot/acceptedProposal
// fields that have "not yet been set" use this value rather than a pointer.
var Zero = Ballot{}

// Micros returns the microsecond timestamp the ballot was minted at. This
// doubles as the write timestamp handed to storage.Engine, so that last-
// write-wins reconciliation orders by the same value Paxos orders by.
func (b Ballot) Micros() uint64 {
	return binary.BigEndian.Uint64(b[:8])
}

// Compare returns -1, 0, or 1 as b is less than, equal to, or greater than
// other, comparing the full 16 bytes so entropy breaks ties deterministically.
func (b Ballot) Compare(other Ballot) int {
	for i := 0; i < 16; i++ {
		if b[i] != other[i] {
			if b[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether b sorts strictly before other.
func (b Ballot) Less(other Ballot) bool {
	return b.Compare(other) < 0
}

// IsZero reports whether b is the Zero ballot.
func (b Ballot) IsZero() bool {
	return b == Zero
}

// String renders the ballot as a hex string, useful for logs and trace IDs.
func (b Ballot) String() string {
	return hex.EncodeToString(b[:])
}

// Generator mints Ballots for a single node. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy [8]byte
	last    Ballot
}

// NewGenerator creates a Generator whose minted ballots are unique across
// the cluster as long as hostID is unique across the cluster (spec.md §6
// placement oracle hostId(endpoint) → uuid feeds this).
func NewGenerator(hostID uuid.UUID) *Generator {
	var entropy [8]byte
	copy(entropy[:], hostID[:8])
	return &Generator{entropy: entropy}
}

// Next mints a ballot strictly greater than every ballot this Generator has
// previously minted and at least 1+microsTimestamp(floor).
func (g *Generator) Next(floor Ballot) Ballot {
	g.mu.Lock()
	defer g.mu.Unlock()

	micros := uint64(time.Now().UnixMicro())
	if floorMicros := floor.Micros(); floorMicros >= micros {
		micros = floorMicros + 1
	}
	if lastMicros := g.last.Micros(); lastMicros >= micros {
		micros = lastMicros + 1
	}

	var b Ballot
	binary.BigEndian.PutUint64(b[:8], micros)
	copy(b[8:], g.entropy[:])

	g.last = b
	return b
}
