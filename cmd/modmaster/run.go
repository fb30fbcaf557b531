package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeplc/modmaster/internal/config"
	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/master"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/plcmem"
	"github.com/edgeplc/modmaster/internal/tui"
)

type runFlags struct {
	configPath  string
	logLevel    string
	logFile     string
	bufferSize  int
	stopTimeout time.Duration
	watch       bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the configured devices",
		Long: `Start one polling worker per configured device and keep the I/O buffers
synchronized until interrupted.

Each worker owns its device's TCP connection. A device that cannot be
reached is retried with growing backoff and never takes the rest of the
fleet down. Press Ctrl+C to stop.`,
		Example: `  # Poll the fleet described in devices.json
  modmaster run --config devices.json

  # Same, with a live status table
  modmaster run --config devices.json --watch

  # Verbose transaction logging to a file
  modmaster run --config devices.json --log-level debug --log-file master.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaster(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "devices.json", "device configuration file (JSON or YAML)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level: silent, error, info, verbose, debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "mirror log output to a file")
	cmd.Flags().IntVar(&flags.bufferSize, "buffer-size", 1024, "elements per I/O buffer bank")
	cmd.Flags().DurationVar(&flags.stopTimeout, "stop-timeout", 5*time.Second, "per-worker shutdown deadline")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "show a live status table instead of log output")

	return cmd
}

func runMaster(flags *runFlags) error {
	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return err
	}
	if flags.watch && flags.logFile == "" {
		// The status table owns the terminal; keep the log out of it.
		level = logging.LevelSilent
	}
	log, err := logging.NewLogger(level, flags.logFile)
	if err != nil {
		return err
	}
	defer log.Close()

	devices, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.bufferSize <= 0 {
		return fmt.Errorf("buffer-size must be positive, got %d", flags.bufferSize)
	}

	mem := plcmem.NewMemory(flags.bufferSize)
	reg := metrics.NewRegistry()
	sup := master.NewSupervisor(mem, reg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started, err := sup.Start(ctx, devices)
	if err != nil {
		return err
	}
	log.Info("polling %d devices from %s", started, flags.configPath)

	if flags.watch {
		if err := tui.Run(reg); err != nil {
			log.Error("status screen: %v", err)
		}
		stop()
	} else {
		<-ctx.Done()
	}

	log.Info("shutting down")
	sup.Stop(flags.stopTimeout)
	printSummary(reg)
	return nil
}

func printSummary(reg *metrics.Registry) {
	for _, s := range reg.Snapshot() {
		fmt.Fprintf(os.Stdout, "%s (%s): %d reads, %d writes, %d errors, %d reconnects\n",
			s.Name, s.Target, s.Reads, s.Writes, s.Errors, s.Reconnects)
	}
}
