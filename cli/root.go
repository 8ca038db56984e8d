// Package cli provides the command-line interface for Titan-AAS: serve
// runs the HTTP surface, worker runs the Single-Writer for one entity
// kind, and migrate applies the Store schema. Generalized from the
// teacher's single always-serving RootCmd (cli/root.go) into a
// subcommand structure, since this system's Store/Event
// Log/Single-Writer/HTTP surface are meant to scale and deploy
// independently of one another.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the entry point every subcommand attaches to.
var RootCmd = &cobra.Command{
	Use:   "titan-aas",
	Short: "Titan-AAS: an Asset Administration Shell repository, registry and discovery service",
	Long: `Titan-AAS serves Shells, Submodels and ConceptDescriptions behind a
fast/slow-path HTTP surface with deterministic ETags, routes every write
through a durable event log, and fans out mutations to subscribed
clients over WebSocket and SSE.`,
}

// Execute runs the CLI, exiting the process with status 1 on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(workerCmd)
	RootCmd.AddCommand(migrateCmd)
}
