package topology

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory PlacementOracle + LivenessDetector + Snitch, used
// by every package's tests in place of the real gossip/ring machinery
// (spec.md leaves the ring and failure detector out of scope entirely). A
// cmd/coordinator node run without a real ring uses it too, configured via
// SetDefaultReplication from its static peer list instead of SetNatural's
// per-key test wiring.
// It is a fake collaborator, not a mock: tests configure it through its
// Set* methods and then exercise real coordinator code against it.
type Memory struct {
	mu sync.RWMutex

	// natural[keyspace][key] -> ordered endpoints
	natural map[string]map[string][]Endpoint
	pending map[string]map[string][]Endpoint

	hostIDs map[Endpoint]uuid.UUID
	dc      map[Endpoint]string
	rack    map[Endpoint]string

	alive    map[Endpoint]bool
	downtime map[Endpoint]uint64

	rf     map[string]int
	tokens []string

	// defaultPeers/defaultRF back NaturalEndpoints/ReplicationFactor/
	// SortedTokens for any (keyspace, key) SetNatural never configured
	// explicitly, by hashing key onto the static peer list instead of
	// consulting a real token ring.
	defaultPeers []Endpoint
	defaultRF    int
}

// NewMemory creates an empty Memory oracle.
func NewMemory() *Memory {
	return &Memory{
		natural:  make(map[string]map[string][]Endpoint),
		pending:  make(map[string]map[string][]Endpoint),
		hostIDs:  make(map[Endpoint]uuid.UUID),
		dc:       make(map[Endpoint]string),
		rack:     make(map[Endpoint]string),
		alive:    make(map[Endpoint]bool),
		downtime: make(map[Endpoint]uint64),
		rf:       make(map[string]int),
	}
}

// SetNatural configures the natural endpoints returned for (keyspace, key).
func (m *Memory) SetNatural(keyspace, key string, endpoints []Endpoint) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.natural[keyspace] == nil {
		m.natural[keyspace] = make(map[string][]Endpoint)
	}
	m.natural[keyspace][key] = endpoints
	return m
}

// SetPending configures the pending endpoints returned for (keyspace, key).
func (m *Memory) SetPending(keyspace, key string, endpoints []Endpoint) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[keyspace] == nil {
		m.pending[keyspace] = make(map[string][]Endpoint)
	}
	m.pending[keyspace][key] = endpoints
	return m
}

// SetEndpoint registers an endpoint's datacenter, rack, host ID and initial
// liveness in one call, the common case for test setup.
func (m *Memory) SetEndpoint(e Endpoint, dc, rack string, alive bool) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dc[e] = dc
	m.rack[e] = rack
	m.alive[e] = alive
	if _, ok := m.hostIDs[e]; !ok {
		m.hostIDs[e] = uuid.New()
	}
	return m
}

// SetAlive updates an endpoint's liveness, used to simulate failures mid-test.
func (m *Memory) SetAlive(e Endpoint, alive bool) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alive[e] = alive
	return m
}

// SetDowntime records how long an endpoint has been reported down.
func (m *Memory) SetDowntime(e Endpoint, millis uint64) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downtime[e] = millis
	return m
}

// SetReplicationFactor configures the RF reported for a keyspace.
func (m *Memory) SetReplicationFactor(keyspace string, rf int) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rf[keyspace] = rf
	return m
}

// SetSortedTokens configures the ring's tokens, used by the Range Scan
// Driver to find split points. Tests that never exercise range scans can
// leave this unset; SortedTokens then reports an empty ring.
func (m *Memory) SetSortedTokens(tokens []string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append([]string(nil), tokens...)
	return m
}

// SetDefaultReplication configures a static fallback ring: a (keyspace, key)
// pair with no explicit SetNatural entry resolves to rf peers starting at a
// deterministic hash of key into the sorted peer list, wrapping around. A
// node started without the real gossip ring and placement strategy spec.md
// leaves out of scope uses this for even, if not locality-aware, key
// distribution across its configured peers.
func (m *Memory) SetDefaultReplication(peers []Endpoint, rf int) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPeers = append([]Endpoint(nil), peers...)
	sortEndpoints(m.defaultPeers)
	m.defaultRF = rf
	return m
}

func (m *Memory) defaultReplicas(key string) []Endpoint {
	if len(m.defaultPeers) == 0 {
		return nil
	}
	rf := m.defaultRF
	if rf <= 0 || rf > len(m.defaultPeers) {
		rf = len(m.defaultPeers)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	start := int(h.Sum32() % uint32(len(m.defaultPeers)))
	out := make([]Endpoint, rf)
	for i := 0; i < rf; i++ {
		out[i] = m.defaultPeers[(start+i)%len(m.defaultPeers)]
	}
	return out
}

// --------------------------------------------------------------------------
// PlacementOracle
// --------------------------------------------------------------------------

func (m *Memory) NaturalEndpoints(keyspace, key string) []Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if explicit, ok := m.natural[keyspace][key]; ok {
		return append([]Endpoint(nil), explicit...)
	}
	return m.defaultReplicas(key)
}

func (m *Memory) PendingEndpoints(keyspace, key string) []Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Endpoint(nil), m.pending[keyspace][key]...)
}

func (m *Memory) HostID(endpoint Endpoint) uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hostIDs[endpoint]
}

func (m *Memory) SortedTokens() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tokens) > 0 {
		return append([]string(nil), m.tokens...)
	}
	tokens := make([]string, len(m.defaultPeers))
	for i, p := range m.defaultPeers {
		tokens[i] = string(p)
	}
	return tokens
}

func (m *Memory) Topology() map[string]map[string][]Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string][]Endpoint)
	for e, dc := range m.dc {
		rack := m.rack[e]
		if out[dc] == nil {
			out[dc] = make(map[string][]Endpoint)
		}
		out[dc][rack] = append(out[dc][rack], e)
	}
	return out
}

// --------------------------------------------------------------------------
// ReplicationStrategy
// --------------------------------------------------------------------------

func (m *Memory) ReplicationFactor(keyspace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rf, ok := m.rf[keyspace]; ok {
		return rf
	}
	if len(m.natural[keyspace]) > 0 {
		return len(m.natural[keyspace])
	}
	if m.defaultRF > 0 {
		return m.defaultRF
	}
	return len(m.defaultPeers)
}

func (m *Memory) BlockFor(cl ConsistencyLevel, keyspace string) int {
	return BlockFor(cl, m.ReplicationFactor(keyspace))
}

// --------------------------------------------------------------------------
// LivenessDetector
// --------------------------------------------------------------------------

func (m *Memory) IsAlive(endpoint Endpoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alive[endpoint]
}

func (m *Memory) DowntimeMillis(endpoint Endpoint) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downtime[endpoint]
}

func (m *Memory) LiveMembers() []Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Endpoint
	for e, alive := range m.alive {
		if alive {
			out = append(out, e)
		}
	}
	sortEndpoints(out)
	return out
}

func (m *Memory) UnreachableMembers() []Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Endpoint
	for e, alive := range m.alive {
		if !alive {
			out = append(out, e)
		}
	}
	sortEndpoints(out)
	return out
}

func (m *Memory) LiveTokenOwners() []Endpoint {
	return m.LiveMembers()
}

// --------------------------------------------------------------------------
// Snitch
// --------------------------------------------------------------------------

func (m *Memory) Datacenter(endpoint Endpoint) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dc[endpoint]
}

func (m *Memory) Rack(endpoint Endpoint) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rack[endpoint]
}

// SortByProximity returns endpoints unchanged; Memory has no real notion of
// network distance, so proximity order is just input order. Tests that care
// about proximity ordering set up natural endpoints in the order they want.
func (m *Memory) SortByProximity(_ Endpoint, endpoints []Endpoint) []Endpoint {
	return append([]Endpoint(nil), endpoints...)
}

// IsWorthMergingForRangeQuery always approves the merge; range-scan tests
// that need to exercise the "not worth merging" path construct their own
// Snitch.
func (m *Memory) IsWorthMergingForRangeQuery(_, _, _ []Endpoint) bool {
	return true
}

func sortEndpoints(endpoints []Endpoint) {
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i] < endpoints[j] })
}
