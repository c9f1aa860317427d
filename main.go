// sbustui — Bubble Tea TUI to replay SBUS calibration logs to a robot receiver
//
// Run:
//   sbustui --log calibration_log.txt --port /dev/ttyUSB0 --baud 115200
//   sbustui run --log calibration_log.txt --block "Forward" --port /dev/ttyUSB0
//   sbustui parse calibration_log.txt --blocks
//   sbustui ports
//
// Keys:
//   enter — send selected command / run block when a header is selected
//   r     — run the selected block
//   s     — stop the running block
//   x     — reset sent marks
//   o     — open a log file
//   c     — connect / disconnect the port
//   n     — next port, p — rescan ports
//   B     — set baud rate
//   q     — quit
//
// Log format: one directive per line. "<label> SBUS: <hex bytes>" lines are
// commands, any other non-blank line starts a block. Commands labelled with
// (A) (B) (C) or (D) are alternates and are never replayed as part of a block.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
