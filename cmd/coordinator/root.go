// Package coordinator implements the "coordinator" subcommand: it builds
// every driver and ambient-stack collaborator a running node needs and
// serves them over the rpc/server + rpc/transport stack, the coordinator
// analogue of the teacher's cmd/serve package.
package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/batchlog"
	cfgpkg "github.com/latticedb/coordinator/config"
	coord "github.com/latticedb/coordinator/coordinator"
	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/logging"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/metrics"
	"github.com/latticedb/coordinator/paxos"
	"github.com/latticedb/coordinator/rangescan"
	"github.com/latticedb/coordinator/read"
	"github.com/latticedb/coordinator/rpc/common"
	"github.com/latticedb/coordinator/rpc/serializer"
	"github.com/latticedb/coordinator/rpc/server"
	"github.com/latticedb/coordinator/rpc/transport"
	"github.com/latticedb/coordinator/rpc/transport/http"
	"github.com/latticedb/coordinator/rpc/transport/tcp"
	"github.com/latticedb/coordinator/rpc/transport/unix"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/durable"
	"github.com/latticedb/coordinator/systables"
	"github.com/latticedb/coordinator/topology"
	"github.com/latticedb/coordinator/truncate"
	"github.com/latticedb/coordinator/write"
)

// localShardID names this node's single, never-joined local-WAL shard. A
// coordinator node runs exactly one, so there is nothing to parse here the
// way the teacher parsed --shards into several.
const localShardID uint64 = 1

// Cmd is the "coordinator" subcommand, the analogue of the teacher's
// ServeCmd: PreRunE binds and parses flags into a config.Config, RunE
// builds and serves every collaborator against it.
var Cmd = &cobra.Command{
	Use:     "coordinator",
	Short:   "Run a coordinator node",
	PreRunE: func(cmd *cobra.Command, _ []string) error { return bindAndInit(cmd) },
	RunE:    run,
}

func init() {
	cfgpkg.BindFlags(Cmd)
}

func bindAndInit(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}
	cfgpkg.InitEnv()
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := cfgpkg.FromViper()
	if err != nil {
		return err
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	log := logging.For("cmd/coordinator")
	log.Infof("starting coordinator node")
	log.Infof(cfg.String())

	engine, nh, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("cmd/coordinator: building storage engine: %w", err)
	}
	defer nh.Close()

	local := topology.Endpoint(cfg.Endpoint)
	mem := topology.NewMemory()
	var peerEndpoints []topology.Endpoint
	for _, p := range cfg.Peers {
		e := topology.Endpoint(p.Endpoint)
		mem.SetEndpoint(e, p.Datacenter, p.Rack, true)
		peerEndpoints = append(peerEndpoints, e)
	}
	mem.SetDefaultReplication(peerEndpoints, cfg.ReplicationFactor)
	resolver := topology.NewResolver(mem, mem, mem)

	ser, err := pickSerializer(cfg.Serializer)
	if err != nil {
		return err
	}

	clientFactory, err := pickClientTransportFactory(cfg.Transport)
	if err != nil {
		return err
	}
	serverTransport, err := pickServerTransport(cfg.Transport)
	if err != nil {
		return err
	}

	base := common.ClientConfig{
		TimeoutSecond:          int(cfg.TruncateTimeout.Seconds()),
		RetryCount:             3,
		ConnectionsPerEndpoint: 1,
	}
	trans := messaging.New(local, clientFactory, base, ser)
	defer trans.Close()

	sink := metrics.NewSink(cfg.Endpoint)

	index := systables.NewKeyIndex()
	indexedEngine := systables.NewIndexedEngine(engine, cfg.Keyspace, index)

	sysDB := maple.NewMapleDB(maple.DefaultOptions())
	paxosStore := systables.NewPaxosStore(sysDB)
	batchlogStore := systables.NewBatchlogStore(sysDB)
	hintStore := systables.NewHintStore(sysDB, cfg.MaxHintWindow)
	gcGrace := systables.NewGCGrace(uint64(cfg.MaxHintWindow.Seconds()))

	mutationStage := stage.New("mutation", cfg.MutationStageSize, cfg.WriteTimeout, func() {
		trans.IncrementDroppedMessages(messaging.VerbMutation)
		sink.DroppedMessages(messaging.VerbMutation)
	})
	counterStage := stage.New("counter", cfg.CounterStageSize, cfg.CounterWriteTimeout, func() {
		trans.IncrementDroppedMessages(messaging.VerbMutation)
		sink.DroppedMessages(messaging.VerbMutation)
	})
	readStage := stage.New("read", cfg.ReadStageSize, cfg.ReadTimeout, func() {
		trans.IncrementDroppedMessages(messaging.VerbReadCommand)
		sink.DroppedMessages(messaging.VerbReadCommand)
	})

	hostID := mem.HostID(local)
	if hostID == (uuid.UUID{}) {
		hostID = uuid.New()
	}
	gen := ballot.NewGenerator(hostID)

	hintSubmitter := hints.NewSubmitter(hintStore, gcGrace, mem, mem, cfg.MaxHintsInProgress, cfg.MaxHintWindow)
	hintSubmitter.SetHintedHandoffEnabled(cfg.HintedHandoffEnabled)
	hintSubmitter.SetDisabledDatacenters(cfg.DisabledHintDCs)
	hintSubmitter.OnHintWritten(sink.OnHintWritten())
	sink.RegisterHintsInProgressGauge(hintSubmitter.TotalHintsInProgress)

	dispatcher := write.New(local, resolver, indexedEngine, trans, hintSubmitter, mutationStage, counterStage)

	latency := read.NewLatencyTracker(1000)
	readExecutor := read.New(local, resolver, indexedEngine, trans, readStage, latency)
	readExecutor.OnReadRepair(sink.ReadRepairAttempted, sink.ReadRepairRepairedBlocking)

	rangeDriver := rangescan.New(resolver, index, readExecutor, cfg.RangeTimeout)

	acceptor := paxos.NewAcceptor(paxosStore, indexedEngine)
	paxosDriver := paxos.New(local, resolver, trans, acceptor, gen,
		cfg.CASContentionTimeout, cfg.WriteTimeout, cfg.WriteTimeout,
		paxos.WithContentionMetric(sink.PaxosContention))

	batchlogDriver := batchlog.New(local, resolver, trans, dispatcher, batchlogStore, cfg.WriteTimeout, cfg.WriteTimeout)

	truncateDriver := truncate.New(local, mem, indexedEngine, trans, cfg.TruncateTimeout)

	ctx := coord.New(local, resolver, dispatcher, readExecutor, rangeDriver, paxosDriver, batchlogDriver, truncateDriver, hintSubmitter, sink, log,
		coord.Timeouts{
			Write:         cfg.WriteTimeout,
			Read:          cfg.ReadTimeout,
			CounterWrite:  cfg.CounterWriteTimeout,
			Range:         cfg.RangeTimeout,
			Truncate:      cfg.TruncateTimeout,
			CASContention: cfg.CASContentionTimeout,
		})
	ctx.SetSchemaVersionSource(staticSchemaVersion(cfg.SchemaVersion))
	ctx.SetMessenger(trans)

	srvConfig := common.ServerConfig{
		Endpoint:      cfg.Endpoint,
		TimeoutSecond: int64(cfg.TruncateTimeout.Seconds()),
		LogLevel:      cfg.LogLevel,
	}

	srv := server.New(srvConfig, serverTransport, ser, dispatcher, readExecutor, acceptor, truncateDriver, batchlogDriver, indexedEngine, ctx)
	return srv.Serve()
}

// staticSchemaVersion is the coordinator.SchemaVersionSource this node
// answers describeSchemaVersions probes with: a fixed, config-supplied
// string, since the CQL/DDL surface that would otherwise change it at
// runtime is explicitly out of scope.
type staticSchemaVersion string

func (s staticSchemaVersion) SchemaVersion() string { return string(s) }

// buildEngine starts this node's single local-WAL Dragonboat shard and
// wraps it in a storage.Engine, the same NodeHost/StartConcurrentReplica/
// state-machine-factory sequence the teacher used for its own remote
// shards, narrowed to one shard that never joins a cluster.
func buildEngine(cfg *cfgpkg.Config) (storage.Engine, *dragonboat.NodeHost, error) {
	srvConfig := common.ServerConfig{
		RTTMillisecond:     cfg.RTTMillisecond,
		SnapshotEntries:    cfg.SnapshotEntries,
		CompactionOverhead: cfg.CompactionOverhead,
		DataDir:            cfg.DataDir,
		ReplicaID:          cfg.ReplicaID,
		ClusterMembers:     map[uint64]string{cfg.ReplicaID: cfg.RaftAddress},
	}

	nh, err := dragonboat.NewNodeHost(srvConfig.ToNodeHostConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating node host: %w", err)
	}

	dbFactory := func() db.KVDB { return maple.NewMapleDB(maple.DefaultOptions()) }
	stateMachineFactory := durable.CreateStateMachineFactory(dbFactory)
	if err := nh.StartConcurrentReplica(srvConfig.ClusterMembers, false, stateMachineFactory, srvConfig.ToDragonboatConfig(localShardID)); err != nil {
		nh.Close()
		return nil, nil, fmt.Errorf("starting local shard: %w", err)
	}

	engine := durable.NewDurableEngine(nh, localShardID, cfg.EngineTimeout)
	if err := waitForReady(engine, 10*time.Second); err != nil {
		nh.Close()
		return nil, nil, err
	}
	return engine, nh, nil
}

// waitForReady polls engine until its local shard answers an Info() call
// or timeout elapses. A freshly started single-member Raft group still
// needs one election round before it can serve proposals/reads.
func waitForReady(engine storage.Engine, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if _, err := engine.Info(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("local shard not ready after %s: %w", timeout, lastErr)
}

func pickSerializer(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("cmd/coordinator: invalid serializer %q", name)
	}
}

func pickClientTransportFactory(name string) (messaging.ClientTransportFactory, error) {
	switch name {
	case "http":
		return func() transport.IRPCClientTransport { return http.NewHttpClientTransport() }, nil
	case "tcp":
		return func() transport.IRPCClientTransport { return tcp.NewTCPClientTransport() }, nil
	case "unix":
		return func() transport.IRPCClientTransport { return unix.NewUnixClientTransport() }, nil
	default:
		return nil, fmt.Errorf("cmd/coordinator: invalid transport %q", name)
	}
}

func pickServerTransport(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("cmd/coordinator: invalid transport %q", name)
	}
}
