package main

import (
	"fmt"

	"codeberg.org/mutker/nasfanctl/internal/chip"
	"codeberg.org/mutker/nasfanctl/internal/config"
	"codeberg.org/mutker/nasfanctl/internal/logger"
	"github.com/spf13/cobra"
)

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Read the Super I/O chip ID without changing fan settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadChip(cmd.Flags())
			if err != nil {
				return err
			}

			logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())

			port := uint16(cfg.ChipPort)
			ports, err := openPorts(port, cfg.DryRun, logger.Get())
			if err != nil {
				return err
			}
			defer ports.Close()

			identity, err := chip.Probe(ports, port)
			if err != nil {
				return err
			}

			status := "supported"
			if !identity.Known() {
				status = "not supported"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chip: %s (%#04x, %s) at port %#02x\n",
				identity.Name, identity.ID, status, port)

			return nil
		},
	}
}
