package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgeplc/modmaster/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a device configuration file",
		Long: `Load a device configuration file and report every problem a run would
hit: malformed addresses, unknown function codes, mismatched point
definitions, duplicate devices. Nothing is dialed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: ok (%d devices)\n", configPath, len(devices))
			for _, dev := range devices {
				fmt.Fprintf(os.Stdout, "  %-20s %-22s base tick %dms, %d points\n",
					dev.Name, dev.Target(), dev.BaseTickMs(), len(dev.Points))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "devices.json", "device configuration file (JSON or YAML)")
	return cmd
}
