// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/dialhaven/recall/cmd/recall/config"
	servecmder "github.com/dialhaven/recall/cmd/recall/serve"
	tokencmder "github.com/dialhaven/recall/cmd/recall/token"
	versioncmder "github.com/dialhaven/recall/cmd/version"
)

const recallLongDesc string = `Recall is the tiered conversational memory engine for voice agents.

It keeps a rolling in-process buffer per caller thread for low-latency
context, and consolidates older turns into a durable, tenant-scoped
memory store.

Run the service using:
  recall serve         Run the memory engine API server`

const recallShortDesc string = "Recall - Conversational Memory Engine"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to the .recall/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(tokencmder.NewTokenCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
