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
)

func withFakeClient(t *testing.T, resp common.Envelope) *fakeTransport {
	t.Helper()
	ser := serializer.NewJSONSerializer()
	raw, err := ser.Serialize(resp)
	require.NoError(t, err)

	trans := &fakeTransport{resp: raw}
	prev := rpcClient
	rpcClient = newClient(t, trans)
	t.Cleanup(func() { rpcClient = prev })
	return trans
}

func TestSetWriteTimeoutCmdRejectsInvalidDuration(t *testing.T) {
	withFakeClient(t, common.Envelope{Ok: true})
	err := setWriteTimeoutCmd.RunE(setWriteTimeoutCmd, []string{"not-a-duration"})
	assert.Error(t, err)
}

func TestSetWriteTimeoutCmdSendsParsedDuration(t *testing.T) {
	trans := withFakeClient(t, common.Envelope{Ok: true})
	err := setWriteTimeoutCmd.RunE(setWriteTimeoutCmd, []string{"250ms"})
	require.NoError(t, err)
	assert.Equal(t, uint64(coord.AdminSetWriteTimeout), trans.lastShardID)

	var env common.Envelope
	require.NoError(t, serializer.NewJSONSerializer().Deserialize(trans.lastReq, &env))
	var req coord.AdminRequest
	require.NoError(t, json.Unmarshal(env.Payload, &req))
	assert.Equal(t, 250*time.Millisecond, req.DurationValue)
}

func TestSetHintedHandoffEnabledCmdRejectsInvalidBool(t *testing.T) {
	withFakeClient(t, common.Envelope{Ok: true})
	err := setHintedHandoffEnabledCmd.RunE(setHintedHandoffEnabledCmd, []string{"maybe"})
	assert.Error(t, err)
}

func TestSetMaxHintsInProgressCmdRejectsNegativeNumber(t *testing.T) {
	withFakeClient(t, common.Envelope{Ok: true})
	err := setMaxHintsInProgressCmd.RunE(setMaxHintsInProgressCmd, []string{"-1"})
	assert.Error(t, err)
}

func TestDescribeSchemaVersionsCmdRequiresParsableDeadline(t *testing.T) {
	withFakeClient(t, common.Envelope{Ok: true})
	err := describeSchemaVersionsCmd.RunE(describeSchemaVersionsCmd, []string{"soon"})
	assert.Error(t, err)
}

func TestDescribeSchemaVersionsCmdSendsDeadline(t *testing.T) {
	trans := withFakeClient(t, common.Envelope{Ok: true})
	err := describeSchemaVersionsCmd.RunE(describeSchemaVersionsCmd, []string{"2s"})
	require.NoError(t, err)
	assert.Equal(t, uint64(coord.AdminDescribeSchemaVersions), trans.lastShardID)

	var env common.Envelope
	require.NoError(t, serializer.NewJSONSerializer().Deserialize(trans.lastReq, &env))
	var req coord.AdminRequest
	require.NoError(t, json.Unmarshal(env.Payload, &req))
	assert.Equal(t, 2*time.Second, req.DurationValue)
}
