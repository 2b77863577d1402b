package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/nasfanctl/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	simulatedChipID = 0x8613
	simulatedECBase = 0x0a30
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nasfanctl",
		Short: "Closed-loop fan control for storage servers",
		Long: `nasfanctl keeps the hottest drive of a storage server near a setpoint
by driving the fans of an ITE Super I/O chip with a PID controller.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		// the daemon is the default action when no subcommand is given
		RunE: runDaemon,
	}

	root.PersistentFlags().AddFlagSet(config.NewFlagSet(root.Name()))

	root.AddCommand(newIdentifyCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nasfanctl %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nasfanctl: %v\n", err)
		os.Exit(1)
	}
}
