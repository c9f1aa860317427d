package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sbustui/internal/replay"
	"sbustui/internal/sbuslog"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var blocksOnly bool

	cmd := &cobra.Command{
		Use:   "parse <log>",
		Short: "Show how a calibration log is read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, err := sbuslog.ReadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if blocksOnly {
				fmt.Fprintln(out, renderBlocks(res.Entries, cfg.Replay.SkipMarkers))
			} else {
				fmt.Fprintln(out, renderEntries(res.Entries))
			}
			fmt.Fprintf(out, "%d entries, %d commands, %d blocks\n",
				len(res.Entries), sbuslog.CountCommands(res.Entries), len(sbuslog.Blocks(res.Entries)))

			if len(res.Errors) == 0 {
				return nil
			}
			errOut := cmd.ErrOrStderr()
			for _, derr := range res.Errors {
				fmt.Fprintf(errOut, "warning: %v\n", derr)
			}
			return fmt.Errorf("%d lines could not be decoded", len(res.Errors))
		},
	}

	cmd.Flags().BoolVar(&blocksOnly, "blocks", false, "List blocks with the commands a run would send")
	return cmd
}

func renderEntries(entries []sbuslog.Entry) string {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		switch v := e.(type) {
		case *sbuslog.Header:
			rows = append(rows, []string{strconv.Itoa(i + 1), "block", v.Text, ""})
		case *sbuslog.Command:
			rows = append(rows, []string{strconv.Itoa(i + 1), "command", v.Label, v.RawHex})
		}
	}
	return renderTable([]string{"#", "Kind", "Label", "SBUS"}, rows, []columnAlignment{alignRight})
}

func renderBlocks(entries []sbuslog.Entry, skip []string) string {
	blocks := sbuslog.Blocks(entries)
	rows := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		replayable := 0
		job, err := replay.SelectBlock(entries, b.Index, skip)
		switch {
		case err == nil:
			replayable = job.Len()
		case !errors.Is(err, replay.ErrEmptyBlock):
			replayable = -1
		}
		rows = append(rows, []string{
			strconv.Itoa(b.Index + 1),
			b.Title,
			strconv.Itoa(b.Commands),
			strconv.Itoa(replayable),
		})
	}
	return renderTable([]string{"#", "Block", "Commands", "Replayed"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight})
}
