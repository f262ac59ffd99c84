package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/latticedb/coordinator/storage/db"
)

// CommandType defines the possible operations for the state machine. These
// mirror storage.Engine's write methods one-to-one; the state machine never
// sees anything richer than what an Engine implementation must support.
type CommandType uint8

const (
	CommandTApply         CommandType = iota // Apply: insert or overwrite an entry.
	CommandTApplyIfAbsent                    // ApplyIfAbsent: insert only if the key is not already present.
	CommandTExpire                           // Expire: mark an entry expired as of Timestamp.
	CommandTDelete                           // Delete: remove an entry as of Timestamp.
	CommandTTruncate                         // Truncate: drop all data held by the shard.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTApply:
		return "Apply"
	case CommandTApplyIfAbsent:
		return "ApplyIfAbsent"
	case CommandTExpire:
		return "Expire"
	case CommandTDelete:
		return "Delete"
	case CommandTTruncate:
		return "Truncate"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature, used to
// check whether the underlying db.KVDB supports the requested operation
// before applying it.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTApply:
		return db.FeatureSetE, nil
	case CommandTApplyIfAbsent:
		return db.FeatureSetEIfUnset, nil
	case CommandTExpire:
		return db.FeatureExpire, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTTruncate:
		return 0, nil // handled directly by the state machine, not by db.KVDB
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a single storage.Engine write, serialized as one entry
// in the Raft log.
//
// Timestamp carries the caller-supplied write timestamp (the write's ballot)
// explicitly, rather than letting the state machine derive it from the Raft
// log index the way the teacher's original dstore command did — read repair
// compares this timestamp across replicas, so it must be the same value the
// coordinator used everywhere, not a per-node log position.
type Command struct {
	Type      CommandType
	Key       string
	Timestamp uint64
	ExpireIn  uint64
	DeleteIn  uint64
	Value     []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command.
func (command *Command) SizeBytes() int {
	size := 1 + 8 + 8 + 8 + 4 + len(command.Key) // Type + Timestamp + ExpireIn + DeleteIn + KeyLen + Key
	if command.Value != nil {
		size += len(command.Value)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for timestamp,
// 8 bytes for expireIn,
// 8 bytes for deleteIn,
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	totalSize := command.SizeBytes()
	result := make([]byte, totalSize)

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.Timestamp)
	binary.BigEndian.PutUint64(result[9:17], command.ExpireIn)
	binary.BigEndian.PutUint64(result[17:25], command.DeleteIn)
	binary.BigEndian.PutUint32(result[25:29], uint32(len(command.Key)))

	keyBytes := []byte(command.Key)
	copy(result[29:29+len(keyBytes)], keyBytes)

	if command.Value != nil {
		copy(result[29+len(keyBytes):], command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	// Minimum size: 1 (Type) + 8 (Timestamp) + 8 (ExpireIn) + 8 (DeleteIn) + 4 (KeyLen) = 29 bytes
	if len(data) < 29 {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Timestamp = binary.BigEndian.Uint64(data[1:9])
	command.ExpireIn = binary.BigEndian.Uint64(data[9:17])
	command.DeleteIn = binary.BigEndian.Uint64(data[17:25])

	keyLen := binary.BigEndian.Uint32(data[25:29])

	if len(data) < 29+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}

	command.Key = string(data[29 : 29+keyLen])

	if len(data) > 29+int(keyLen) {
		valueLen := len(data) - (29 + int(keyLen))
		if command.Value == nil || cap(command.Value) < valueLen {
			command.Value = make([]byte, valueLen)
		} else {
			command.Value = command.Value[:valueLen]
		}
		copy(command.Value, data[29+int(keyLen):])
	} else {
		command.Value = nil
	}

	return nil
}
