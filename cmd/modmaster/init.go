package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/edgeplc/modmaster/internal/config"
)

func newInitCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively scaffold a device configuration",
		Long: `Ask for a first device's connection settings and write a starter
configuration file with one example point per direction. Edit the file
afterwards to describe the real point tables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "devices.json", "file to write")
	return cmd
}

func runInit(outPath string) error {
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", outPath)
	}

	name := "plc-1"
	host := "192.168.0.10"
	port := "502"
	cycle := "1000"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Device name").
				Description("Unique name for this slave device.").
				Value(&name),
			huh.NewInput().
				Title("Host").
				Description("IP address or hostname of the device.").
				Value(&host),
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(validatePortInput),
			huh.NewInput().
				Title("Cycle time (ms)").
				Description("Default polling interval for the device's points.").
				Value(&cycle).
				Validate(validatePositiveInput),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	portN, _ := strconv.Atoi(port)
	cycleN, _ := strconv.Atoi(cycle)

	entries := []map[string]any{
		{
			"name":     name,
			"protocol": "MODBUS",
			"config": map[string]any{
				"host":          host,
				"port":          portN,
				"cycle_time_ms": cycleN,
				"timeout_ms":    1000,
				"io_points": []config.IOPoint{
					{FC: 2, Offset: "0", IECLocation: "%IX0.0", Length: 8},
					{FC: 3, Offset: "0", IECLocation: "%IW0", Length: 4},
					{FC: 16, Offset: "100", IECLocation: "%MW0", Length: 4},
				},
			},
		},
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
	return nil
}

func validatePortInput(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("port must be 1-65535")
	}
	return nil
}

func validatePositiveInput(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
