package coordinator

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/topology"
)

// UnreachableSchemaVersion is the sentinel spec.md §6 names for an endpoint
// that did not answer a schema probe within the RPC timeout.
const UnreachableSchemaVersion = "UNREACHABLE"

// SchemaVersionSource answers this node's own current schema version, the
// narrow, out-of-scope collaborator a real schema/migrations subsystem
// would implement (spec.md §1 excludes CQL parsing and schema storage from
// this module's scope; describeSchemaVersions only needs one string out of
// it).
type SchemaVersionSource interface {
	SchemaVersion() string
}

// schemaProbeMessenger is the slice of messaging.Messenger
// describeSchemaVersions needs: fire a probe at a remote endpoint and get a
// callback. Kept separate from the full Messenger interface so Context's
// constructor signature does not have to grow every time Messenger does.
type schemaProbeMessenger interface {
	SendRRWithFailure(verb messaging.Verb, payload []byte, to topology.Endpoint, cb messaging.Callback, onFailure messaging.FailureCallback) (id uint64, err error)
	IncrementDroppedMessages(verb messaging.Verb)
}

type schemaProbeResponse struct {
	Version string
}

// HandleSchemaVersionProbe answers an incoming VerbSchemaVersionProbe,
// mirroring the teacher's adapter Handle methods: decode nothing (the
// probe carries no payload), reply with this node's own schema version.
func (c *Context) HandleSchemaVersionProbe() ([]byte, error) {
	version := ""
	if c.schemaVersions != nil {
		version = c.schemaVersions.SchemaVersion()
	}
	return json.Marshal(schemaProbeResponse{Version: version})
}

// DescribeSchemaVersions implements SPEC_FULL §4.1: fan a schema-version
// probe out to every live token owner, collect within deadline, and bucket
// endpoints by reported version. Endpoints that do not answer by the
// deadline are reported under UnreachableSchemaVersion, never silently
// dropped, so an operator sees every node that should have answered.
func (c *Context) DescribeSchemaVersions(deadline time.Duration) map[string][]topology.Endpoint {
	owners := c.Resolver.Liveness.LiveTokenOwners()

	result := make(map[string][]topology.Endpoint)
	recorded := make(map[topology.Endpoint]bool, len(owners))
	var mu sync.Mutex
	record := func(version string, endpoint topology.Endpoint) {
		mu.Lock()
		defer mu.Unlock()
		if recorded[endpoint] {
			return
		}
		recorded[endpoint] = true
		result[version] = append(result[version], endpoint)
	}

	var wg sync.WaitGroup
	for _, owner := range owners {
		owner := owner
		if owner == c.Local {
			version := ""
			if c.schemaVersions != nil {
				version = c.schemaVersions.SchemaVersion()
			}
			record(version, owner)
			continue
		}

		wg.Add(1)
		_, err := c.messenger.SendRRWithFailure(messaging.VerbSchemaVersionProbe, nil, owner,
			func(from topology.Endpoint, resp messaging.Response) {
				defer wg.Done()
				var parsed schemaProbeResponse
				if resp.Ok && json.Unmarshal(resp.Payload, &parsed) == nil {
					record(parsed.Version, from)
				} else {
					record(UnreachableSchemaVersion, from)
				}
			},
			func(from topology.Endpoint, _ string) {
				defer wg.Done()
				record(UnreachableSchemaVersion, from)
			},
		)
		if err != nil {
			c.messenger.IncrementDroppedMessages(messaging.VerbSchemaVersionProbe)
			record(UnreachableSchemaVersion, owner)
			wg.Done()
			continue
		}
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(deadline):
	}

	for _, owner := range owners {
		record(UnreachableSchemaVersion, owner)
	}

	return result
}
