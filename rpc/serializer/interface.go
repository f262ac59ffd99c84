package serializer

import "github.com/latticedb/coordinator/rpc/common"

// IRPCSerializer is the interface every Envelope codec implements.
type IRPCSerializer interface {
	// Serialize serializes env into a byte array.
	Serialize(env common.Envelope) ([]byte, error)
	// Deserialize deserializes b into env.
	Deserialize(b []byte, env *common.Envelope) error
}
