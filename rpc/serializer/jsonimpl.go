package serializer

import (
	"encoding/json"
	"github.com/latticedb/coordinator/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (j jsonSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return json.Unmarshal(b, env)
}
