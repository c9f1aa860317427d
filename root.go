package main

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"sbustui/internal/link"
	"sbustui/internal/replay"
)

func newRootCommand() *cobra.Command {
	var configFlag, portFlag, logFlag string
	var baudFlag int

	ctx := newCommandContext(&configFlag, &portFlag, &baudFlag)

	rootCmd := &cobra.Command{
		Use:           "sbustui",
		Short:         "Replay SBUS calibration logs to a robot over serial",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(ctx, logFlag)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "", "Serial port (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&baudFlag, "baud", "b", 0, "Baud rate 1200-921600 (overrides config)")
	rootCmd.Flags().StringVarP(&logFlag, "log", "l", "", "Calibration log to load on start")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newPortsCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runInteractive(ctx *commandContext, logPath string) error {
	if !isTerminal(os.Stdout.Fd()) {
		return errors.New("interactive mode needs a terminal; use 'sbustui run' for headless replay")
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, closer, err := ctx.logger(nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	lk := ctx.newLink()
	defer lk.Close()

	sched := &teaScheduler{}
	app := newApp(appConfig{
		LogPath:  logPath,
		Port:     cfg.Serial.Port,
		Baud:     cfg.Serial.Baud,
		Skip:     cfg.Replay.SkipMarkers,
		Interval: cfg.Interval(),
		Pulse:    cfg.Pulse(),
	}, lk, sched, link.PortNames, logger)

	p := tea.NewProgram(app, tea.WithAltScreen())
	sched.send = p.Send
	logger.Info("session started", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
	_, err = p.Run()
	return err
}

var _ replay.Transmitter = (*link.Link)(nil)
