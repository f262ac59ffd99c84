package admin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coord "github.com/latticedb/coordinator/coordinator"
	"github.com/latticedb/coordinator/rpc/common"
	"github.com/latticedb/coordinator/rpc/serializer"
	"github.com/latticedb/coordinator/rpc/transport"
)

type fakeTransport struct {
	lastShardID uint64
	lastReq     []byte
	resp        []byte
	err         error
}

func (f *fakeTransport) Connect(common.ClientConfig) error { return nil }
func (f *fakeTransport) Close() error                      { return nil }
func (f *fakeTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	f.lastShardID = shardId
	f.lastReq = req
	return f.resp, f.err
}

var _ transport.IRPCClientTransport = (*fakeTransport)(nil)

func newClient(t *testing.T, trans *fakeTransport) *adminClient {
	t.Helper()
	return &adminClient{transport: trans, serializer: serializer.NewJSONSerializer()}
}

func TestAdminClientCallSendsOpAsShardID(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	payload, err := json.Marshal(coord.AdminResponse{DurationValue: 5 * time.Second})
	require.NoError(t, err)
	okEnv, err := ser.Serialize(common.Envelope{Payload: payload, Ok: true})
	require.NoError(t, err)

	trans := &fakeTransport{resp: okEnv}
	c := newClient(t, trans)

	resp, err := c.call(coord.AdminRequest{Op: coord.AdminGetWriteTimeout})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, resp.DurationValue)
	assert.Equal(t, uint64(coord.AdminGetWriteTimeout), trans.lastShardID)
}

func TestAdminClientCallPropagatesServerError(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	errEnv, err := ser.Serialize(common.Envelope{Ok: false, Err: "unknown op"})
	require.NoError(t, err)

	trans := &fakeTransport{resp: errEnv}
	c := newClient(t, trans)

	_, err = c.call(coord.AdminRequest{Op: coord.AdminGetWriteTimeout})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")
}

func TestAdminClientCallPropagatesTransportError(t *testing.T) {
	trans := &fakeTransport{err: assert.AnError}
	c := newClient(t, trans)

	_, err := c.call(coord.AdminRequest{Op: coord.AdminSetWriteTimeout, DurationValue: time.Minute})
	assert.Error(t, err)
}

func TestAdminClientCallEncodesRequestFields(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	okEnv, err := ser.Serialize(common.Envelope{Ok: true})
	require.NoError(t, err)

	trans := &fakeTransport{resp: okEnv}
	c := newClient(t, trans)

	_, err = c.call(coord.AdminRequest{Op: coord.AdminSetHintedHandoffEnabled, BoolValue: true})
	require.NoError(t, err)

	var env common.Envelope
	require.NoError(t, ser.Deserialize(trans.lastReq, &env))
	var req coord.AdminRequest
	require.NoError(t, json.Unmarshal(env.Payload, &req))
	assert.Equal(t, coord.AdminSetHintedHandoffEnabled, req.Op)
	assert.True(t, req.BoolValue)
}
