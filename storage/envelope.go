package storage

import (
	"encoding/binary"
	"fmt"
)

// Envelope prefixes a stored value with the write timestamp it was applied
// at, so that an Engine built on a db.KVDB whose own Get() does not expose
// per-key write indices can still answer ExecuteLocally's
// (value, timestamp, loaded, err) contract.
//
// Wire format: 8 bytes big-endian timestamp, followed by the raw value.

// EncodeEnvelope prepends timestamp to value.
func EncodeEnvelope(value []byte, timestamp uint64) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], timestamp)
	copy(buf[8:], value)
	return buf
}

// DecodeEnvelope splits a stored envelope back into its value and timestamp.
func DecodeEnvelope(envelope []byte) (value []byte, timestamp uint64, err error) {
	if len(envelope) < 8 {
		return nil, 0, fmt.Errorf("storage: envelope too short (%d bytes)", len(envelope))
	}
	timestamp = binary.BigEndian.Uint64(envelope[:8])
	if len(envelope) == 8 {
		return nil, timestamp, nil
	}
	return envelope[8:], timestamp, nil
}
