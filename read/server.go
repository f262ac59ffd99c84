package read

import "encoding/json"

// Accept is VerbReadCommand's replica-side entry point, answered the same
// way whether the caller is another node's Read Executor or its Paxos
// Driver's S1 (paxos.Driver.read encodes the same Command shape under its
// own readCommand type to avoid an import cycle).
func (e *Executor) Accept(payload []byte) ([]byte, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, err
	}
	return json.Marshal(e.readLocal(cmd.Key))
}
