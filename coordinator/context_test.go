package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/topology"
)

type fakeSchemaSource struct{ version string }

func (f fakeSchemaSource) SchemaVersion() string { return f.version }

func buildSchemaCluster(t *testing.T) (*Context, *messaging.Fake) {
	t.Helper()

	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "rack1", true)
	mem.SetEndpoint("n2", "dc1", "rack1", true)
	mem.SetEndpoint("n3", "dc1", "rack1", true)

	resolver := topology.NewResolver(mem, mem, mem)

	fake := messaging.NewFake("n1")

	c := New("n1", resolver, nil, nil, nil, nil, nil, nil, nil, nil, nil, Timeouts{})
	c.SetSchemaVersionSource(fakeSchemaSource{version: "v1"})
	c.SetMessenger(fake)
	return c, fake
}

func TestDescribeSchemaVersionsBucketsByVersion(t *testing.T) {
	c, fake := buildSchemaCluster(t)

	fake.RegisterNode("n2", func(verb messaging.Verb, _ []byte, _ topology.Endpoint) (messaging.Response, error) {
		require.Equal(t, messaging.VerbSchemaVersionProbe, verb)
		payload, err := c.HandleSchemaVersionProbe()
		require.NoError(t, err)
		return messaging.Response{Ok: true, Payload: payload}, nil
	})
	fake.RegisterNode("n3", func(verb messaging.Verb, _ []byte, _ topology.Endpoint) (messaging.Response, error) {
		return messaging.Response{Ok: true, Payload: []byte(`{"Version":"v2"}`)}, nil
	})

	result := c.DescribeSchemaVersions(time.Second)
	require.ElementsMatch(t, []topology.Endpoint{"n1", "n2"}, result["v1"])
	require.ElementsMatch(t, []topology.Endpoint{"n3"}, result["v2"])
}

func TestDescribeSchemaVersionsMarksUnreachable(t *testing.T) {
	c, fake := buildSchemaCluster(t)

	fake.RegisterNode("n2", func(verb messaging.Verb, _ []byte, _ topology.Endpoint) (messaging.Response, error) {
		payload, _ := c.HandleSchemaVersionProbe()
		return messaging.Response{Ok: true, Payload: payload}, nil
	})
	fake.SetUnreachable("n3", true)

	result := c.DescribeSchemaVersions(50 * time.Millisecond)
	require.ElementsMatch(t, []topology.Endpoint{"n3"}, result[UnreachableSchemaVersion])
}

func TestAdminSurfaceReadsAndWritesTimeouts(t *testing.T) {
	c, _ := buildSchemaCluster(t)
	c.writeTimeoutNs.Store(int64(time.Second))

	require.Equal(t, time.Second, c.GetWriteTimeout())
	c.SetWriteTimeout(2 * time.Second)
	require.Equal(t, 2*time.Second, c.GetWriteTimeout())
}
