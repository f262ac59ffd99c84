// Package cmd implements the command-line interface for the lattice
// coordinator. It provides a hierarchical command structure for running a
// node and administering one already running.
//
// The package is organized into several subpackages:
//
//   - coordinator: starts and configures a coordinator node
//   - admin: inspects and tunes a running node's MBean-shaped admin surface
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// See lattice -help for a list of all commands.
package cmd
