package topology

import "github.com/google/uuid"

// PlacementOracle is the token-ring / replica-placement contract spec.md §6
// consumes but leaves out of scope.
type PlacementOracle interface {
	NaturalEndpoints(keyspace, key string) []Endpoint
	PendingEndpoints(keyspace, key string) []Endpoint
	HostID(endpoint Endpoint) uuid.UUID
	SortedTokens() []string
	Topology() map[string]map[string][]Endpoint // dc -> rack -> endpoints
}

// LivenessDetector is the per-endpoint failure detector spec.md §6 consumes.
type LivenessDetector interface {
	IsAlive(endpoint Endpoint) bool
	DowntimeMillis(endpoint Endpoint) uint64
	LiveMembers() []Endpoint
	UnreachableMembers() []Endpoint
	LiveTokenOwners() []Endpoint
}

// Snitch is the datacenter/rack/proximity oracle spec.md §6 consumes.
type Snitch interface {
	Datacenter(endpoint Endpoint) string
	Rack(endpoint Endpoint) string
	SortByProximity(self Endpoint, endpoints []Endpoint) []Endpoint
	IsWorthMergingForRangeQuery(merged, left, right []Endpoint) bool
}

// ReplicationStrategy is the slice of spec.md §6's replication strategy
// that callers outside quorum need directly (the rest, writeResponseHandler,
// is quorum.NewHandler).
type ReplicationStrategy interface {
	ReplicationFactor(keyspace string) int
	BlockFor(cl ConsistencyLevel, keyspace string) int
}

// Resolver is the Endpoint Resolver (spec.md §4.A): given (keyspace, key)
// it returns naturalEndpoints and pendingEndpoints, plus the filtering and
// sorting utilities every driver needs to turn that list into a plan. It is
// pure over a snapshot of the three oracles above; it never mutates them.
type Resolver struct {
	Placement ReplicationStrategyPlacement
	Liveness  LivenessDetector
	Snitch    Snitch
}

// ReplicationStrategyPlacement composes PlacementOracle with
// ReplicationStrategy since every resolver needs both.
type ReplicationStrategyPlacement interface {
	PlacementOracle
	ReplicationStrategy
}

// NewResolver constructs a Resolver over the three consumed oracles.
func NewResolver(placement ReplicationStrategyPlacement, liveness LivenessDetector, snitch Snitch) *Resolver {
	return &Resolver{Placement: placement, Liveness: liveness, Snitch: snitch}
}

// Resolve returns the natural and pending endpoints for (keyspace, key),
// ordered stably (placement-oracle order, never reshuffled here).
func (r *Resolver) Resolve(keyspace, key string) (natural, pending []Endpoint) {
	return r.Placement.NaturalEndpoints(keyspace, key), r.Placement.PendingEndpoints(keyspace, key)
}

// FilterAlive returns the subset of endpoints the liveness detector
// currently reports as alive, preserving input order.
func (r *Resolver) FilterAlive(endpoints []Endpoint) []Endpoint {
	alive := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if r.Liveness.IsAlive(e) {
			alive = append(alive, e)
		}
	}
	return alive
}

// SortByProximity orders endpoints by the snitch's notion of distance from
// self, closest first.
func (r *Resolver) SortByProximity(self Endpoint, endpoints []Endpoint) []Endpoint {
	return r.Snitch.SortByProximity(self, endpoints)
}

// RestrictToLocalDC returns the subset of endpoints in localDC.
func (r *Resolver) RestrictToLocalDC(endpoints []Endpoint, localDC string) []Endpoint {
	local := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if r.Snitch.Datacenter(e) == localDC {
			local = append(local, e)
		}
	}
	return local
}

// GroupByDatacenter buckets endpoints by the snitch's datacenter answer,
// used by the Write Dispatcher to build per-DC forwarding bundles
// (spec.md §4.D step 3).
func (r *Resolver) GroupByDatacenter(endpoints []Endpoint) map[string][]Endpoint {
	byDC := make(map[string][]Endpoint)
	for _, e := range endpoints {
		dc := r.Snitch.Datacenter(e)
		byDC[dc] = append(byDC[dc], e)
	}
	return byDC
}
