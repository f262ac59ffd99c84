package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all tunables for a running coordinator node, the coordinator
// analogue of the teacher's rpc/common.ServerConfig.
type Config struct {
	// Endpoint is the address this node listens on and identifies itself by
	// in the topology (e.g. "10.0.0.1:9042").
	Endpoint string

	// Serializer selects the wire encoding: "json", "gob" or "binary".
	Serializer string
	// Transport selects the wire transport: "http", "tcp" or "unix".
	Transport string

	// Keyspace is the single keyspace this node's storage engine serves,
	// the coordinator analogue of the teacher's one-shard-per-process model.
	Keyspace string

	// Datacenter and Rack place this node in the snitch's topology.
	Datacenter string
	Rack       string

	// Peers lists every node in the cluster, including this one, as
	// "endpoint=datacenter:rack" entries. It seeds the static
	// topology.Memory fallback ring a node runs in place of the real gossip
	// ring and placement strategy (spec.md leaves both out of scope).
	Peers []PeerConfig
	// ReplicationFactor is the natural replica count the static fallback
	// ring assigns to every keyspace.
	ReplicationFactor int

	// Per-verb RPC timeouts.
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	CounterWriteTimeout time.Duration
	RangeTimeout        time.Duration
	TruncateTimeout     time.Duration

	// CASContentionTimeout bounds how long the Paxos Driver retries on
	// ballot contention before giving up (spec.md §4.G).
	CASContentionTimeout time.Duration

	// MaxHintsInProgress is the global soft admission cap the Hint
	// Submitter checks before enqueuing a hint (spec.md §3).
	MaxHintsInProgress uint64
	// MaxHintWindow is the longest an endpoint may have been down and still
	// have writes hinted for it (hints.Submitter.ShouldHint). cmd/coordinator
	// also uses it as the default hint TTL and gc-grace fallback at startup.
	MaxHintWindow time.Duration
	// HintedHandoffEnabled toggles the shouldHint(endpoint) policy
	// entirely; false makes every write degrade straight to failure
	// accounting instead of hinting.
	HintedHandoffEnabled bool
	// DisabledHintDCs lists datacenters hinted handoff is disabled for,
	// independent of the global HintedHandoffEnabled flag.
	DisabledHintDCs []string

	// LogLevel is one of "debug", "info", "warning", "error".
	LogLevel string

	// SchemaVersion is this node's reported schema version, answered by
	// VerbSchemaVersionProbe (coordinator.SchemaVersionSource). spec.md's
	// out-of-scope CQL/DDL surface never changes it at runtime; a real
	// schema-change path would stamp a fresh value here instead.
	SchemaVersion string

	// DataDir, ReplicaID and the Dragonboat tuning knobs below back this
	// node's single local-WAL shard (storage/durable; see
	// rpc/common.ServerConfig.ToDragonboatConfig/ToNodeHostConfig). Unlike
	// the teacher's multi-member Raft groups, this shard never joins a
	// cluster: ReplicaID names its own, sole member.
	DataDir            string
	ReplicaID          uint64
	RaftAddress        string
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	EngineTimeout      time.Duration

	// MutationStageSize/CounterStageSize/ReadStageSize bound
	// the concurrency of the stage.Pool each driver schedules its fan-out
	// work onto (spec.md §5's "stage" concept).
	MutationStageSize int
	CounterStageSize  int
	ReadStageSize     int
}

// PeerConfig is one entry of Config.Peers: a cluster member's address and
// the datacenter/rack the snitch reports for it.
type PeerConfig struct {
	Endpoint   string
	Datacenter string
	Rack       string
}

// ParsePeers parses Peers.Endpoint-style "endpoint=datacenter:rack" entries
// such as "10.0.0.1:9042=dc1:rack1", skipping blank entries.
func ParsePeers(raw []string) ([]PeerConfig, error) {
	peers := make([]PeerConfig, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addrAndLoc := strings.SplitN(entry, "=", 2)
		if len(addrAndLoc) != 2 {
			return nil, fmt.Errorf("config: invalid peer entry %q, want endpoint=datacenter:rack", entry)
		}
		loc := strings.SplitN(addrAndLoc[1], ":", 2)
		if len(loc) != 2 {
			return nil, fmt.Errorf("config: invalid peer location %q, want datacenter:rack", addrAndLoc[1])
		}
		peers = append(peers, PeerConfig{Endpoint: addrAndLoc[0], Datacenter: loc[0], Rack: loc[1]})
	}
	return peers, nil
}

// DisablesHintsFor reports whether dc is listed in DisabledHintDCs.
func (c *Config) DisablesHintsFor(dc string) bool {
	for _, d := range c.DisabledHintDCs {
		if d == dc {
			return true
		}
	}
	return false
}

// String returns a formatted representation of the configuration, in the
// same addSection/addField shape as rpc/common.ServerConfig.String().
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-28s: %s\n", name, value))
	}

	addSection("Node")
	addField("Endpoint", c.Endpoint)
	addField("Keyspace", c.Keyspace)
	addField("Datacenter", c.Datacenter)
	addField("Rack", c.Rack)
	addField("Log Level", c.LogLevel)

	addSection("Static Topology")
	addField("Replication Factor", strconv.Itoa(c.ReplicationFactor))
	peers := make([]string, len(c.Peers))
	for i, p := range c.Peers {
		peers[i] = fmt.Sprintf("%s(%s:%s)", p.Endpoint, p.Datacenter, p.Rack)
	}
	addField("Peers", strings.Join(peers, ", "))

	addSection("Wire")
	addField("Serializer", c.Serializer)
	addField("Transport", c.Transport)

	addSection("RPC Timeouts")
	addField("Write", c.WriteTimeout.String())
	addField("Read", c.ReadTimeout.String())
	addField("Counter Write", c.CounterWriteTimeout.String())
	addField("Range", c.RangeTimeout.String())
	addField("Truncate", c.TruncateTimeout.String())
	addField("CAS Contention", c.CASContentionTimeout.String())

	addSection("Hinted Handoff")
	addField("Enabled", strconv.FormatBool(c.HintedHandoffEnabled))
	addField("Max Hints In Progress", strconv.FormatUint(c.MaxHintsInProgress, 10))
	addField("Max Hint Window", c.MaxHintWindow.String())
	addField("Disabled DCs", strings.Join(c.DisabledHintDCs, ","))

	addSection("Local Storage")
	addField("Schema Version", c.SchemaVersion)
	addField("Data Directory", c.DataDir)
	addField("Replica ID", strconv.FormatUint(c.ReplicaID, 10))
	addField("Raft Address", c.RaftAddress)
	addField("RTT (ms)", strconv.FormatUint(c.RTTMillisecond, 10))
	addField("Snapshot Entries", strconv.FormatUint(c.SnapshotEntries, 10))
	addField("Compaction Overhead", strconv.FormatUint(c.CompactionOverhead, 10))
	addField("Engine Timeout", c.EngineTimeout.String())

	return sb.String()
}
