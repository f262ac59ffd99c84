package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticedb/coordinator/cmd/admin"
	coordinatorcmd "github.com/latticedb/coordinator/cmd/coordinator"
)

const (
	Version = "1.0.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lattice",
		Short: "a wide-column store coordinator",
		Long: fmt.Sprintf(`lattice (v%s)

A quorum-replicated, Paxos-backed wide-column store coordinator written in
Go: quorum reads/writes, lightweight transactions, hinted handoff, range
scans and batched writes across a replicated cluster.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lattice v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(coordinatorcmd.Cmd)
	RootCmd.AddCommand(admin.Cmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
