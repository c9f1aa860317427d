package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sbustui/internal/link"
	"sbustui/internal/replay"
	"sbustui/internal/sbuslog"
	"sbustui/internal/testsupport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "{dir}", filepath.ToSlash(dir))
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fastConfig = `[replay]
interval_ms = 1

[logging]
dir = "{dir}/logs"
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestRunBlockHeadless(t *testing.T) {
	entries := sbuslog.Parse(calibrationLines).Entries
	tx := &testsupport.Transmitter{}

	progress, err := runBlock(t.Context(), runOptions{
		Entries:  entries,
		Start:    0,
		Skip:     replay.DefaultSkipMarkers,
		Interval: time.Millisecond,
		TX:       tx,
	})
	if err != nil {
		t.Fatalf("runBlock: %v", err)
	}
	if progress != (replay.Progress{Sent: 3, Total: 3}) {
		t.Fatalf("progress: got %v", progress)
	}
	if len(tx.Frames) != 3 || !bytes.Equal(tx.Frames[1], []byte{0x03, 0x04}) {
		t.Fatalf("frames: got % X", tx.Frames)
	}
}

func TestRunBlockSkipsFailedWrites(t *testing.T) {
	entries := sbuslog.Parse(calibrationLines).Entries
	tx := &testsupport.Transmitter{Fail: func(call int, _ []byte) error {
		if call == 1 {
			return &link.IOError{Port: "fake", Err: errors.New("unplugged")}
		}
		return nil
	}}

	progress, err := runBlock(t.Context(), runOptions{
		Entries:  entries,
		Skip:     replay.DefaultSkipMarkers,
		Interval: time.Millisecond,
		TX:       tx,
	})
	if err != nil {
		t.Fatalf("runBlock: %v", err)
	}
	if tx.Calls != 3 || progress != (replay.Progress{Sent: 2, Total: 3}) {
		t.Fatalf("calls=%d progress=%v", tx.Calls, progress)
	}
}

func TestRunBlockRejectsBadStart(t *testing.T) {
	entries := sbuslog.Parse(calibrationLines).Entries
	if _, err := runBlock(t.Context(), runOptions{Entries: entries, Start: 1, TX: &testsupport.Transmitter{}}); !errors.Is(err, replay.ErrNotAHeader) {
		t.Fatalf("command row: got %v", err)
	}
	only := sbuslog.Parse([]string{"Alternates", "x (B) SBUS: 09"}).Entries
	if _, err := runBlock(t.Context(), runOptions{Entries: only, Skip: replay.DefaultSkipMarkers, TX: &testsupport.Transmitter{}}); !errors.Is(err, replay.ErrEmptyBlock) {
		t.Fatalf("empty block: got %v", err)
	}
}

func TestRunBlockStopsOnCancel(t *testing.T) {
	entries := sbuslog.Parse(calibrationLines).Entries
	ctx, cancel := context.WithCancel(t.Context())
	tx := &testsupport.Transmitter{Fail: func(call int, _ []byte) error {
		cancel()
		return nil
	}}

	progress, err := runBlock(ctx, runOptions{
		Entries:  entries,
		Skip:     replay.DefaultSkipMarkers,
		Interval: time.Millisecond,
		TX:       tx,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v", err)
	}
	if progress.Sent >= 3 {
		t.Fatalf("run was not interrupted: %v", progress)
	}
}

func TestRunCommandDryRun(t *testing.T) {
	cfgPath := writeConfig(t, fastConfig)
	logPath := testsupport.WriteLog(t, calibrationLines...)

	stdout, _, err := execute(t, "run", "--config", cfgPath, "--log", logPath, "--block", "Forward", "--dry-run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"01 02\n", "03 04\n", "06\n", "sent: 3 / 3"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "05\n") {
		t.Fatalf("skip-marked command was sent:\n%s", stdout)
	}
}

func TestRunCommandByIndex(t *testing.T) {
	cfgPath := writeConfig(t, fastConfig)
	logPath := testsupport.WriteLog(t, calibrationLines...)

	stdout, _, err := execute(t, "run", "-c", cfgPath, "-l", logPath, "--index", "6", "--dry-run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, "07 08\n") || !strings.Contains(stdout, "sent: 1 / 1") {
		t.Fatalf("stdout:\n%s", stdout)
	}
}

func TestRunCommandErrors(t *testing.T) {
	cfgPath := writeConfig(t, fastConfig)
	logPath := testsupport.WriteLog(t, calibrationLines...)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no log", []string{"run", "-c", cfgPath, "--block", "Forward"}, "--log is required"},
		{"no block", []string{"run", "-c", cfgPath, "-l", logPath}, "exactly one of"},
		{"both", []string{"run", "-c", cfgPath, "-l", logPath, "--block", "Forward", "--index", "1"}, "exactly one of"},
		{"unknown block", []string{"run", "-c", cfgPath, "-l", logPath, "--block", "Sideways", "--dry-run"}, `no block titled "Sideways"`},
		{"no port", []string{"run", "-c", cfgPath, "-l", logPath, "--block", "Forward"}, "no serial port configured"},
		{"bad baud", []string{"run", "-c", cfgPath, "-b", "300", "-l", logPath, "--block", "Forward"}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err: got %v want %q", err, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	cfgPath := writeConfig(t, fastConfig)
	logPath := testsupport.WriteLog(t, calibrationLines...)

	stdout, _, err := execute(t, "parse", "-c", cfgPath, logPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, want := range []string{"fwd 1", "01 02", "Backward", "7 entries, 5 commands, 2 blocks"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "parse", "-c", cfgPath, "--blocks", logPath)
	if err != nil {
		t.Fatalf("parse --blocks: %v", err)
	}
	if !strings.Contains(stdout, "Forward") || strings.Contains(stdout, "fwd 1") {
		t.Fatalf("blocks view:\n%s", stdout)
	}
}

func TestParseCommandReportsDecodeErrors(t *testing.T) {
	cfgPath := writeConfig(t, fastConfig)
	logPath := testsupport.WriteLog(t, "Forward", "bad SBUS: 0G", "fwd SBUS: 01")

	stdout, stderr, err := execute(t, "parse", "-c", cfgPath, logPath)
	if err == nil || !strings.Contains(err.Error(), "1 lines could not be decoded") {
		t.Fatalf("err: got %v", err)
	}
	if !strings.Contains(stderr, "line 2") {
		t.Fatalf("stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "2 entries, 1 commands, 1 blocks") {
		t.Fatalf("stdout:\n%s", stdout)
	}
}

func TestPortsCommand(t *testing.T) {
	cmd := newPortsCommandWith(func() ([]link.PortInfo, error) {
		return []link.PortInfo{
			{Name: "/dev/ttyACM0"},
			{Name: "/dev/ttyUSB0", USB: true, VID: "0403", PID: "6001", Product: "FT232R"},
		}, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ports: %v", err)
	}
	for _, want := range []string{"/dev/ttyACM0", "0403:6001", "FT232R"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	empty := newPortsCommandWith(func() ([]link.PortInfo, error) { return nil, nil })
	out.Reset()
	empty.SetOut(&out)
	empty.SetArgs([]string{})
	if err := empty.Execute(); err != nil || !strings.Contains(out.String(), "No serial ports found") {
		t.Fatalf("empty: err=%v out=%q", err, out.String())
	}
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	stdout, _, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Fatalf("stdout: %s", stdout)
	}
	if _, _, err := execute(t, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init: got %v", err)
	}
	if _, _, err := execute(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	stdout, _, err = execute(t, "config", "show", "-c", target, "-p", "/dev/ttyUSB3", "-b", "57600")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"# " + target, "/dev/ttyUSB3", "57600", "interval_ms = 500"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("show missing %q:\n%s", want, stdout)
		}
	}
}

func TestRootRefusesWithoutTerminal(t *testing.T) {
	if isTerminal(os.Stdout.Fd()) {
		t.Skip("stdout is a terminal")
	}
	cfgPath := writeConfig(t, fastConfig)
	if _, _, err := execute(t, "-c", cfgPath); err == nil || !strings.Contains(err.Error(), "needs a terminal") {
		t.Fatalf("err: got %v", err)
	}
}
