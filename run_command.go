package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sbustui/internal/replay"
	"sbustui/internal/sbuslog"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logPath, block string
	var index int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay one block of a log without the TUI",
		Long: `Replay the commands of one block on the configured cadence and exit.

The block is chosen by header text (--block) or by 1-based line number of the
header in the parsed log (--index, see 'sbustui parse'). Commands whose label
carries a skip marker are left out. A failed write is reported and the run
moves on to the next command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				return errors.New("--log is required")
			}
			if (block == "") == (index == 0) {
				return errors.New("exactly one of --block or --index is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closer, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			res, err := sbuslog.ReadFile(logPath)
			if err != nil {
				return err
			}
			for _, derr := range res.Errors {
				logger.Warn("skipped malformed command", "path", logPath, "line", derr.Line, "label", derr.Label, "error", derr.Err)
			}

			start := index - 1
			if block != "" {
				start = sbuslog.FindBlock(res.Entries, block)
				if start < 0 {
					return fmt.Errorf("no block titled %q in %s", block, logPath)
				}
			}

			var tx replay.Transmitter
			if dryRun {
				tx = &dryRunTransmitter{w: cmd.OutOrStdout()}
			} else {
				if cfg.Serial.Port == "" {
					return errors.New("no serial port configured; pass --port or use --dry-run")
				}
				lk := ctx.newLink()
				if err := lk.Open(cfg.Serial.Port, cfg.Serial.Baud); err != nil {
					return err
				}
				defer lk.Close()
				logger.Info("port opened", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
				tx = lk
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			progress, err := runBlock(sigCtx, runOptions{
				Entries:  res.Entries,
				Start:    start,
				Skip:     cfg.Replay.SkipMarkers,
				Interval: cfg.Interval(),
				TX:       tx,
				Logger:   logger,
				Progress: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent: %s\n", progress)
			if progress.Sent < progress.Total {
				return fmt.Errorf("%d of %d commands failed", progress.Total-progress.Sent, progress.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "log", "l", "", "Calibration log to replay")
	cmd.Flags().StringVar(&block, "block", "", "Header text of the block to run")
	cmd.Flags().IntVar(&index, "index", 0, "1-based entry number of the block header")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print frames instead of writing to the port")
	return cmd
}

type runOptions struct {
	Entries  []sbuslog.Entry
	Start    int
	Skip     []string
	Interval time.Duration
	TX       replay.Transmitter
	Logger   *slog.Logger
	Progress io.Writer // nil disables the bar
}

// runBlock replays one block on a private loop and blocks until it
// completes or ctx ends.
func runBlock(ctx context.Context, opts runOptions) (replay.Progress, error) {
	loop := replay.NewLoop()
	eng := replay.NewEngine(opts.TX, loop, replay.Options{Interval: opts.Interval, Logger: opts.Logger})
	eng.Load(opts.Entries)

	job, err := eng.Select(opts.Start, opts.Skip)
	if err != nil {
		return replay.Progress{}, err
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(job.Len(),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription(job.Title),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	eng.Subscribe(func(ev replay.Event) {
		switch ev.Kind {
		case replay.EventSent, replay.EventFailed:
			if bar != nil && ev.Source == replay.Auto {
				_ = bar.Add(1)
			}
		case replay.EventCompleted, replay.EventCancelled:
			loop.Stop()
		}
	})

	var startErr error
	loop.Do(func() {
		if startErr = eng.Start(job); startErr != nil {
			loop.Stop()
		}
	})
	runErr := loop.Run(ctx)
	if startErr != nil {
		return replay.Progress{}, startErr
	}
	if runErr != nil {
		// the loop is down; nothing else touches the engine now
		_ = eng.Cancel()
		return eng.Progress(), runErr
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return eng.Progress(), nil
}

// dryRunTransmitter prints frames instead of sending them.
type dryRunTransmitter struct {
	w io.Writer
}

func (d *dryRunTransmitter) Transmit(payload []byte) error {
	_, err := fmt.Fprintf(d.w, "%s\n", strings.TrimSpace(fmt.Sprintf("% X", payload)))
	return err
}
