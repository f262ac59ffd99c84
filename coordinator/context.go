package coordinator

import (
	"sync/atomic"
	"time"

	"github.com/latticedb/coordinator/batchlog"
	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/logging"
	"github.com/latticedb/coordinator/metrics"
	"github.com/latticedb/coordinator/paxos"
	"github.com/latticedb/coordinator/rangescan"
	"github.com/latticedb/coordinator/read"
	"github.com/latticedb/coordinator/topology"
	"github.com/latticedb/coordinator/truncate"
	"github.com/latticedb/coordinator/write"
)

// Context bundles every driver, oracle and ambient-stack collaborator a
// running coordinator node holds, replacing the mutable global singletons
// spec.md §9 flags for redesign. It has a single writer for each piece of
// hot-reloadable state (the Submitter's own atomics, this struct's own
// timeout atomics), reached only through the admin getters/setters below.
type Context struct {
	Local    topology.Endpoint
	Resolver *topology.Resolver

	Write     *write.Dispatcher
	Read      *read.Executor
	RangeScan *rangescan.Driver
	Paxos     *paxos.Driver
	Batchlog  *batchlog.Driver
	Truncate  *truncate.Driver
	Hints     *hints.Submitter

	Metrics *metrics.Sink
	Log     logging.Logger

	schemaVersions SchemaVersionSource
	messenger      schemaProbeMessenger

	writeTimeoutNs        atomic.Int64
	readTimeoutNs         atomic.Int64
	counterWriteTimeoutNs atomic.Int64
	rangeTimeoutNs        atomic.Int64
	truncateTimeoutNs     atomic.Int64
	casContentionNs       atomic.Int64
}

// Timeouts seeds the per-verb RPC timeout atomics the admin surface reads
// and writes at runtime (spec.md §6 MBean surface's "per-verb RPC
// timeouts, CAS contention timeout, truncate timeout").
type Timeouts struct {
	Write        time.Duration
	Read         time.Duration
	CounterWrite time.Duration
	Range        time.Duration
	Truncate     time.Duration
	CASContention time.Duration
}

// New constructs a Context over already-wired drivers. Callers (cmd/coordinator)
// build each driver first, since every driver's own constructor signature is
// the authoritative wiring point; Context only adds the cross-cutting admin
// surface on top.
func New(local topology.Endpoint, resolver *topology.Resolver, w *write.Dispatcher, r *read.Executor, rs *rangescan.Driver, p *paxos.Driver, b *batchlog.Driver, t *truncate.Driver, h *hints.Submitter, m *metrics.Sink, log logging.Logger, timeouts Timeouts) *Context {
	c := &Context{
		Local: local, Resolver: resolver,
		Write: w, Read: r, RangeScan: rs, Paxos: p, Batchlog: b, Truncate: t, Hints: h,
		Metrics: m, Log: log,
	}
	c.writeTimeoutNs.Store(int64(timeouts.Write))
	c.readTimeoutNs.Store(int64(timeouts.Read))
	c.counterWriteTimeoutNs.Store(int64(timeouts.CounterWrite))
	c.rangeTimeoutNs.Store(int64(timeouts.Range))
	c.truncateTimeoutNs.Store(int64(timeouts.Truncate))
	c.casContentionNs.Store(int64(timeouts.CASContention))
	return c
}

// SetSchemaVersionSource wires the local schema version answered by
// describeSchemaVersions probes this node receives; see doc.go and
// schema.go for why this is a separate, narrow collaborator.
func (c *Context) SetSchemaVersionSource(s SchemaVersionSource) { c.schemaVersions = s }

// SetMessenger wires the Messenger describeSchemaVersions fans its probe
// out over. Kept separate from the drivers above since schema version
// probing is the one operation that does not belong to any single driver.
func (c *Context) SetMessenger(m schemaProbeMessenger) { c.messenger = m }

// --------------------------------------------------------------------------
// MBean-shaped admin surface (spec.md §6, §9)
// --------------------------------------------------------------------------

func (c *Context) GetWriteTimeout() time.Duration        { return time.Duration(c.writeTimeoutNs.Load()) }
func (c *Context) SetWriteTimeout(d time.Duration)       { c.writeTimeoutNs.Store(int64(d)) }
func (c *Context) GetReadTimeout() time.Duration         { return time.Duration(c.readTimeoutNs.Load()) }
func (c *Context) SetReadTimeout(d time.Duration)        { c.readTimeoutNs.Store(int64(d)) }
func (c *Context) GetCounterWriteTimeout() time.Duration { return time.Duration(c.counterWriteTimeoutNs.Load()) }
func (c *Context) SetCounterWriteTimeout(d time.Duration) {
	c.counterWriteTimeoutNs.Store(int64(d))
}
func (c *Context) GetRangeTimeout() time.Duration    { return time.Duration(c.rangeTimeoutNs.Load()) }
func (c *Context) SetRangeTimeout(d time.Duration)   { c.rangeTimeoutNs.Store(int64(d)) }
func (c *Context) GetTruncateTimeout() time.Duration { return time.Duration(c.truncateTimeoutNs.Load()) }
func (c *Context) SetTruncateTimeout(d time.Duration) {
	c.truncateTimeoutNs.Store(int64(d))
}
func (c *Context) GetCASContentionTimeout() time.Duration {
	return time.Duration(c.casContentionNs.Load())
}
func (c *Context) SetCASContentionTimeout(d time.Duration) {
	c.casContentionNs.Store(int64(d))
}

func (c *Context) GetHintedHandoffEnabled() bool  { return c.Hints.HintedHandoffEnabled() }
func (c *Context) SetHintedHandoffEnabled(v bool) { c.Hints.SetHintedHandoffEnabled(v) }
func (c *Context) GetMaxHintsInProgress() uint64  { return c.Hints.MaxHintsInProgress() }
func (c *Context) SetMaxHintsInProgress(n uint64) { c.Hints.SetMaxHintsInProgress(n) }
func (c *Context) GetMaxHintWindow() time.Duration { return c.Hints.MaxHintWindow() }
func (c *Context) SetMaxHintWindow(d time.Duration) { c.Hints.SetMaxHintWindow(d) }
