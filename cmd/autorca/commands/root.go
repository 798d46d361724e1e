// Package commands implements the autorca CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCommand builds the autorca command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "autorca",
		Short: "Root-cause analysis over service event streams",
		Long: `autorca ingests normalized events and optional trace spans, builds the
service dependency graph, detects incidents, traces causal chains from a
declared symptom, and prints ranked root-cause candidates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand())
	return root
}
