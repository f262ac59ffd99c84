package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/rpc/common"
	"github.com/latticedb/coordinator/storage/db"
)

func TestPickSerializer(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"json", false},
		{"gob", false},
		{"binary", false},
		{"xml", true},
	}
	for _, c := range cases {
		ser, err := pickSerializer(c.name)
		if c.wantErr {
			assert.Error(t, err)
			assert.Nil(t, ser)
			continue
		}
		require.NoError(t, err)
		assert.NotNil(t, ser)
	}
}

func TestPickSerializerRoundTrips(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		ser, err := pickSerializer(name)
		require.NoError(t, err)

		raw, err := ser.Serialize(common.Envelope{Payload: []byte("hello"), Ok: true})
		require.NoError(t, err)

		var env common.Envelope
		require.NoError(t, ser.Deserialize(raw, &env))
		assert.Equal(t, []byte("hello"), env.Payload)
		assert.True(t, env.Ok)
	}
}

func TestPickClientTransportFactory(t *testing.T) {
	for _, name := range []string{"http", "tcp", "unix"} {
		factory, err := pickClientTransportFactory(name)
		require.NoError(t, err)
		require.NotNil(t, factory)
		trans := factory()
		assert.NotNil(t, trans)
	}

	_, err := pickClientTransportFactory("carrier-pigeon")
	assert.Error(t, err)
}

func TestPickServerTransport(t *testing.T) {
	for _, name := range []string{"http", "tcp", "unix"} {
		trans, err := pickServerTransport(name)
		require.NoError(t, err)
		assert.NotNil(t, trans)
	}

	_, err := pickServerTransport("carrier-pigeon")
	assert.Error(t, err)
}

type fakeEngine struct {
	readyAfter int
	calls      int
}

func (f *fakeEngine) Apply(string, []byte, uint64, uint64, uint64) error           { return nil }
func (f *fakeEngine) ApplyIfAbsent(string, []byte, uint64, uint64, uint64) error    { return nil }
func (f *fakeEngine) Expire(string, uint64) error                                  { return nil }
func (f *fakeEngine) Delete(string, uint64) error                                  { return nil }
func (f *fakeEngine) ExecuteLocally(string) ([]byte, uint64, bool, error)           { return nil, 0, false, nil }
func (f *fakeEngine) Has(string) (bool, error)                                      { return false, nil }
func (f *fakeEngine) Truncate() error                                               { return nil }
func (f *fakeEngine) Info() (db.DatabaseInfo, error) {
	f.calls++
	if f.calls < f.readyAfter {
		return db.DatabaseInfo{}, assert.AnError
	}
	return db.DatabaseInfo{}, nil
}

func TestWaitForReadyBecomesReady(t *testing.T) {
	engine := &fakeEngine{readyAfter: 3}
	err := waitForReady(engine, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, engine.calls, 3)
}

func TestWaitForReadyTimesOut(t *testing.T) {
	engine := &fakeEngine{readyAfter: 1 << 30}
	err := waitForReady(engine, 150*time.Millisecond)
	assert.Error(t, err)
}

func TestStaticSchemaVersion(t *testing.T) {
	sv := staticSchemaVersion("v7")
	assert.Equal(t, "v7", sv.SchemaVersion())
}
