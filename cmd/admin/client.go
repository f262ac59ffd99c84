// Package admin implements the "admin" subcommand: a thin nodetool-style
// CLI against a running coordinator node's MBean-shaped admin surface
// (coordinator.AdminOp), the analogue of the teacher's cmd/kv/cmd/lock
// client commands now that rpc/client's IStore/ILockManager client no
// longer exists to build on.
package admin

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticedb/coordinator/cmd/util"
	coord "github.com/latticedb/coordinator/coordinator"
	"github.com/latticedb/coordinator/rpc/common"
	"github.com/latticedb/coordinator/rpc/serializer"
	"github.com/latticedb/coordinator/rpc/transport"
)

// Cmd is the "admin" command group.
var Cmd = &cobra.Command{
	Use:               "admin",
	Short:             "Inspect and tune a running coordinator node's MBean surface",
	PersistentPreRunE: setupClient,
}

var rpcClient *adminClient

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(Cmd)

	Cmd.AddCommand(getWriteTimeoutCmd, setWriteTimeoutCmd)
	Cmd.AddCommand(getReadTimeoutCmd, setReadTimeoutCmd)
	Cmd.AddCommand(getCounterWriteTimeoutCmd, setCounterWriteTimeoutCmd)
	Cmd.AddCommand(getRangeTimeoutCmd, setRangeTimeoutCmd)
	Cmd.AddCommand(getTruncateTimeoutCmd, setTruncateTimeoutCmd)
	Cmd.AddCommand(getCASContentionTimeoutCmd, setCASContentionTimeoutCmd)
	Cmd.AddCommand(getHintedHandoffEnabledCmd, setHintedHandoffEnabledCmd)
	Cmd.AddCommand(getMaxHintsInProgressCmd, setMaxHintsInProgressCmd)
	Cmd.AddCommand(getMaxHintWindowCmd, setMaxHintWindowCmd)
	Cmd.AddCommand(describeSchemaVersionsCmd)
}

// adminClient sends one coord.AdminRequest per call and decodes its
// coord.AdminResponse, wrapping the request/response the same
// common.Envelope the wire dispatch table (rpc/server.Server.dispatch)
// expects for any op at or above 100.
type adminClient struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	ser, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}
	if err := t.Connect(*config); err != nil {
		return fmt.Errorf("cmd/admin: connecting: %w", err)
	}

	rpcClient = &adminClient{transport: t, serializer: ser}
	return nil
}

func (c *adminClient) call(req coord.AdminRequest) (coord.AdminResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return coord.AdminResponse{}, err
	}

	wireReq, err := c.serializer.Serialize(common.Envelope{Payload: payload})
	if err != nil {
		return coord.AdminResponse{}, err
	}

	raw, err := c.transport.Send(uint64(req.Op), wireReq)
	if err != nil {
		return coord.AdminResponse{}, err
	}

	var env common.Envelope
	if err := c.serializer.Deserialize(raw, &env); err != nil {
		return coord.AdminResponse{}, err
	}
	if !env.Ok {
		return coord.AdminResponse{}, fmt.Errorf("admin op %d failed: %s", req.Op, env.Err)
	}

	var resp coord.AdminResponse
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			return coord.AdminResponse{}, err
		}
	}
	return resp, nil
}
