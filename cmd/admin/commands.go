package admin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	coord "github.com/latticedb/coordinator/coordinator"
)

func getDurationCmd(use, short string, op coord.AdminOp) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rpcClient.call(coord.AdminRequest{Op: op})
			if err != nil {
				return err
			}
			fmt.Println(resp.DurationValue)
			return nil
		},
	}
}

func setDurationCmd(use, short string, op coord.AdminOp) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[0], err)
			}
			if _, err := rpcClient.call(coord.AdminRequest{Op: op, DurationValue: d}); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

var (
	getWriteTimeoutCmd = getDurationCmd("get-write-timeout", "Print the write RPC timeout", coord.AdminGetWriteTimeout)
	setWriteTimeoutCmd = setDurationCmd("set-write-timeout [duration]", "Set the write RPC timeout", coord.AdminSetWriteTimeout)

	getReadTimeoutCmd = getDurationCmd("get-read-timeout", "Print the read RPC timeout", coord.AdminGetReadTimeout)
	setReadTimeoutCmd = setDurationCmd("set-read-timeout [duration]", "Set the read RPC timeout", coord.AdminSetReadTimeout)

	getCounterWriteTimeoutCmd = getDurationCmd("get-counter-write-timeout", "Print the counter write RPC timeout", coord.AdminGetCounterWriteTimeout)
	setCounterWriteTimeoutCmd = setDurationCmd("set-counter-write-timeout [duration]", "Set the counter write RPC timeout", coord.AdminSetCounterWriteTimeout)

	getRangeTimeoutCmd = getDurationCmd("get-range-timeout", "Print the range scan RPC timeout", coord.AdminGetRangeTimeout)
	setRangeTimeoutCmd = setDurationCmd("set-range-timeout [duration]", "Set the range scan RPC timeout", coord.AdminSetRangeTimeout)

	getTruncateTimeoutCmd = getDurationCmd("get-truncate-timeout", "Print the truncate RPC timeout", coord.AdminGetTruncateTimeout)
	setTruncateTimeoutCmd = setDurationCmd("set-truncate-timeout [duration]", "Set the truncate RPC timeout", coord.AdminSetTruncateTimeout)

	getCASContentionTimeoutCmd = getDurationCmd("get-cas-contention-timeout", "Print the Paxos Driver's contention retry timeout", coord.AdminGetCASContentionTimeout)
	setCASContentionTimeoutCmd = setDurationCmd("set-cas-contention-timeout [duration]", "Set the Paxos Driver's contention retry timeout", coord.AdminSetCASContentionTimeout)

	getMaxHintWindowCmd = getDurationCmd("get-max-hint-window", "Print the longest replica downtime for which writes are still hinted", coord.AdminGetMaxHintWindow)
	setMaxHintWindowCmd = setDurationCmd("set-max-hint-window [duration]", "Set the longest replica downtime for which writes are still hinted", coord.AdminSetMaxHintWindow)
)

var getHintedHandoffEnabledCmd = &cobra.Command{
	Use:   "get-hinted-handoff-enabled",
	Short: "Print whether hinted handoff is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpcClient.call(coord.AdminRequest{Op: coord.AdminGetHintedHandoffEnabled})
		if err != nil {
			return err
		}
		fmt.Println(resp.BoolValue)
		return nil
	},
}

var setHintedHandoffEnabledCmd = &cobra.Command{
	Use:   "set-hinted-handoff-enabled [true|false]",
	Short: "Enable or disable hinted handoff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", args[0], err)
		}
		if _, err := rpcClient.call(coord.AdminRequest{Op: coord.AdminSetHintedHandoffEnabled, BoolValue: enabled}); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var getMaxHintsInProgressCmd = &cobra.Command{
	Use:   "get-max-hints-in-progress",
	Short: "Print the global soft admission cap on in-progress hints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpcClient.call(coord.AdminRequest{Op: coord.AdminGetMaxHintsInProgress})
		if err != nil {
			return err
		}
		fmt.Println(resp.Uint64Value)
		return nil
	},
}

var setMaxHintsInProgressCmd = &cobra.Command{
	Use:   "set-max-hints-in-progress [n]",
	Short: "Set the global soft admission cap on in-progress hints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uint64 %q: %w", args[0], err)
		}
		if _, err := rpcClient.call(coord.AdminRequest{Op: coord.AdminSetMaxHintsInProgress, Uint64Value: n}); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var describeSchemaVersionsCmd = &cobra.Command{
	Use:   "describe-schema-versions [deadline]",
	Short: "Fan a schema version probe out to every live token owner and bucket endpoints by reported version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		resp, err := rpcClient.call(coord.AdminRequest{Op: coord.AdminDescribeSchemaVersions, DurationValue: deadline})
		if err != nil {
			return err
		}
		for version, endpoints := range resp.SchemaVersions {
			fmt.Printf("%s: %v\n", version, endpoints)
		}
		return nil
	},
}
