package batchlog

import "encoding/json"

// AcceptWrite and AcceptDelete are VerbBatchlogWrite/VerbBatchlogDelete's
// replica-side entry points, turning the wire envelopes writeBatchlog and
// deleteBatchlog produce back into Store calls.

func (d *Driver) AcceptWrite(payload []byte) error {
	var wire wireBatch
	if err := json.Unmarshal(payload, &wire); err != nil {
		return err
	}
	return d.store.Write(wire.Batch)
}

func (d *Driver) AcceptDelete(payload []byte) error {
	var wire wireDelete
	if err := json.Unmarshal(payload, &wire); err != nil {
		return err
	}
	return d.store.Delete(wire.Keyspace, wire.ID)
}
