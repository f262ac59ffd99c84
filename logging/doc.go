// Package logging is a standalone, leveled ILogger-shaped logger generalized
// from the teacher's rpc/common/logger.go dKVLogger, no longer tied to
// dragonboat's logger factory (dragonboat is wired through the storage
// layer now, see storage/durable, not used as a log sink). It hands out one
// named sub-logger per package (coordinator, paxos, quorum, hints,
// rangescan, messaging, ...) the way the teacher's InitLoggers named
// dragonboat's internal subsystems.
package logging
