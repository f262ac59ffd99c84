package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags declares every Config flag on cmd, the coordinator analogue of
// the teacher's ServeCmd.init() persistent flag declarations. cmd/coordinator
// calls this once when building its root command.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("endpoint", "0.0.0.0:9042", wrap("The address this node listens on and advertises in the topology"))
	flags.String("keyspace", "default", wrap("The single keyspace this node's storage engine serves"))
	flags.String("datacenter", "dc1", wrap("Local datacenter name, used by the snitch for proximity sorting"))
	flags.String("rack", "rack1", wrap("Local rack name, used by the snitch for proximity sorting"))
	flags.String("log-level", "info", wrap("Log level: debug, info, warning, error"))

	flags.StringSlice("peers", nil, wrap("Cluster members as endpoint=datacenter:rack, comma-separated; include this node's own endpoint"))
	flags.Int("replication-factor", 3, wrap("Natural replica count the static fallback ring assigns to every keyspace"))

	flags.String("serializer", "json", wrap("Wire serializer: json, gob, binary"))
	flags.String("transport", "http", wrap("Wire transport: http, tcp, unix"))

	flags.Duration("write-timeout", 2*time.Second, wrap("RPC timeout for write fan-out"))
	flags.Duration("read-timeout", 5*time.Second, wrap("RPC timeout for read fan-out"))
	flags.Duration("counter-write-timeout", 5*time.Second, wrap("RPC timeout for counter write forwarding"))
	flags.Duration("range-timeout", 10*time.Second, wrap("RPC timeout for range scan pieces"))
	flags.Duration("truncate-timeout", 60*time.Second, wrap("RPC timeout for truncate fan-out"))
	flags.Duration("cas-contention-timeout", time.Second, wrap("How long the Paxos Driver retries on ballot contention before failing"))

	flags.Uint64("max-hints-in-progress", 128*1024, wrap("Global soft cap on hints admitted concurrently"))
	flags.Duration("max-hint-window", 3*time.Hour, wrap("Longest replica downtime for which writes are still hinted; also the default hint TTL"))
	flags.Bool("hinted-handoff-enabled", true, wrap("Whether to hint writes to unreachable replicas instead of failing them"))
	flags.String("disabled-hint-dcs", "", wrap("Comma-separated datacenters hinted handoff is disabled for"))

	flags.String("schema-version", "v1", wrap("This node's reported schema version, answered on schema version probes"))
	flags.String("data-dir", "data", wrap("Directory for this node's local-WAL shard snapshots"))
	flags.Uint64("replica-id", 1, wrap("This node's own Dragonboat replica ID within its single, never-joined local shard"))
	flags.String("raft-address", "127.0.0.1:63001", wrap("Address Dragonboat's own raft transport binds, distinct from --endpoint"))
	flags.Uint64("rtt-millisecond", 100, wrap("Average round trip time in milliseconds Dragonboat derives election/heartbeat timing from"))
	flags.Uint64("snapshot-entries", 10, wrap("How many applied Raft log entries between automatic snapshots"))
	flags.Uint64("compaction-overhead", 5, wrap("How many snapshots to retain when compacting"))
	flags.Duration("engine-timeout", 5*time.Second, wrap("Timeout for a single local-WAL propose/read round"))

	flags.Int("mutation-stage-size", 128, wrap("Max concurrent mutation fan-out goroutines"))
	flags.Int("counter-stage-size", 32, wrap("Max concurrent counter-write fan-out goroutines"))
	flags.Int("read-stage-size", 128, wrap("Max concurrent read fan-out goroutines"))
}

// FromViper reads every flag BindFlags declared, once viper.BindPFlags has
// bound them, the same read-after-bind shape as the teacher's processConfig.
func FromViper() (*Config, error) {
	disabledDCs := []string{}
	if raw := viper.GetString("disabled-hint-dcs"); raw != "" {
		for _, dc := range strings.Split(raw, ",") {
			disabledDCs = append(disabledDCs, strings.TrimSpace(dc))
		}
	}

	peers, err := ParsePeers(viper.GetStringSlice("peers"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Endpoint:             viper.GetString("endpoint"),
		Keyspace:             viper.GetString("keyspace"),
		Serializer:           viper.GetString("serializer"),
		Transport:            viper.GetString("transport"),
		Datacenter:           viper.GetString("datacenter"),
		Rack:                 viper.GetString("rack"),
		Peers:                peers,
		ReplicationFactor:    viper.GetInt("replication-factor"),
		WriteTimeout:         viper.GetDuration("write-timeout"),
		ReadTimeout:          viper.GetDuration("read-timeout"),
		CounterWriteTimeout:  viper.GetDuration("counter-write-timeout"),
		RangeTimeout:         viper.GetDuration("range-timeout"),
		TruncateTimeout:      viper.GetDuration("truncate-timeout"),
		CASContentionTimeout: viper.GetDuration("cas-contention-timeout"),
		MaxHintsInProgress:   viper.GetUint64("max-hints-in-progress"),
		MaxHintWindow:        viper.GetDuration("max-hint-window"),
		HintedHandoffEnabled: viper.GetBool("hinted-handoff-enabled"),
		DisabledHintDCs:      disabledDCs,
		LogLevel:             viper.GetString("log-level"),

		SchemaVersion:      viper.GetString("schema-version"),
		DataDir:            viper.GetString("data-dir"),
		ReplicaID:          viper.GetUint64("replica-id"),
		RaftAddress:        viper.GetString("raft-address"),
		RTTMillisecond:     viper.GetUint64("rtt-millisecond"),
		SnapshotEntries:    viper.GetUint64("snapshot-entries"),
		CompactionOverhead: viper.GetUint64("compaction-overhead"),
		EngineTimeout:      viper.GetDuration("engine-timeout"),

		MutationStageSize: viper.GetInt("mutation-stage-size"),
		CounterStageSize:  viper.GetInt("counter-stage-size"),
		ReadStageSize:     viper.GetInt("read-stage-size"),
	}, nil
}

// InitEnv loads .env/.env.local and wires viper's environment variable
// fallback, the same pattern as the teacher's initConfig/InitClientConfig.
func InitEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("lattice")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// wrap mirrors cmd/util.WrapString's 50-character help text wrapping.
func wrap(text string) string {
	const width = 50
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var sb strings.Builder
	lineLen := 0
	for i, w := range words {
		if i > 0 {
			if lineLen+1+len(w) > width {
				sb.WriteString("\n")
				lineLen = 0
			} else {
				sb.WriteString(" ")
				lineLen++
			}
		}
		sb.WriteString(w)
		lineLen += len(w)
	}
	return sb.String()
}
