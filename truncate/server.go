package truncate

import "encoding/json"

// AcceptTruncate is VerbTruncateRequest's replica-side entry point. The
// request still names keyspace and table for a future multi-table engine;
// today's single-table storage.Engine instance ignores both and truncates
// the one table it owns, the same way Truncate's own local branch does.
func (d *Driver) AcceptTruncate(payload []byte) error {
	var req truncateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	return d.engine.Truncate()
}
