package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/latticedb/coordinator/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasPayload byte = 1 << 0
	hasOk      byte = 1 << 1
	hasErr     byte = 1 << 2
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	result := make([]byte, b.sizeBytes(env))

	var flags byte
	pos := 1 // start after the flags byte

	if env.Payload != nil {
		flags |= hasPayload
		payloadLen := len(env.Payload)
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(payloadLen))
		pos += 4
		if payloadLen > 0 {
			copy(result[pos:pos+payloadLen], env.Payload)
			pos += payloadLen
		}
	}

	if env.Ok {
		flags |= hasOk
	}

	if env.Err != "" {
		flags |= hasErr
		errBytes := []byte(env.Err)
		errLen := len(errBytes)
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(errLen))
		pos += 4
		copy(result[pos:pos+errLen], errBytes)
		pos += errLen
	}

	result[0] = flags
	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, env *common.Envelope) error {
	if len(data) < 1 {
		return fmt.Errorf("data too short for envelope header")
	}

	flags := data[0]
	pos := 1

	if flags&hasPayload != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for payload length")
		}
		payloadLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(payloadLen) > len(data) {
			return fmt.Errorf("data too short for payload data")
		}
		env.Payload = make([]byte, payloadLen)
		if payloadLen > 0 {
			copy(env.Payload, data[pos:pos+int(payloadLen)])
		}
		pos += int(payloadLen)
	} else {
		env.Payload = nil
	}

	env.Ok = flags&hasOk != 0

	if flags&hasErr != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for error length")
		}
		errLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(errLen) > len(data) {
			return fmt.Errorf("data too short for error data")
		}
		env.Err = string(data[pos : pos+int(errLen)])
		pos += int(errLen)
	} else {
		env.Err = ""
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (b binarySerializerImpl) sizeBytes(env common.Envelope) int {
	size := 1 // flags byte

	if env.Payload != nil {
		size += 4 + len(env.Payload)
	}
	if env.Err != "" {
		size += 4 + len(env.Err)
	}

	return size
}
