package replay

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"sbustui/internal/sbuslog"
)

var (
	ErrNotAHeader     = errors.New("select a block header")
	ErrEmptyBlock     = errors.New("block has no commands to replay")
	ErrAlreadyRunning = errors.New("a block is already running")
	ErrNotRunning     = errors.New("no block is running")
	ErrNotACommand    = errors.New("entry is not a command")
)

// DefaultSkipMarkers exclude alternate-channel variants from block runs.
var DefaultSkipMarkers = []string{"(A)", "(B)", "(C)", "(D)"}

// Item references one command of the loaded log.
type Item struct {
	Index   int // entry index in the log
	Command *sbuslog.Command
}

// Job is the ordered set of commands a block run will transmit.
type Job struct {
	ID     string
	Header int
	Title  string
	Items  []Item
}

func (j Job) Len() int { return len(j.Items) }

// SelectBlock collects the commands between the header at start and the
// next header. Commands whose label contains any of skip are left out.
func SelectBlock(entries []sbuslog.Entry, start int, skip []string) (Job, error) {
	if start < 0 || start >= len(entries) {
		return Job{}, ErrNotAHeader
	}
	h, ok := entries[start].(*sbuslog.Header)
	if !ok {
		return Job{}, ErrNotAHeader
	}

	job := Job{ID: uuid.NewString(), Header: start, Title: h.Text}
walk:
	for i := start + 1; i < len(entries); i++ {
		switch e := entries[i].(type) {
		case *sbuslog.Header:
			break walk
		case *sbuslog.Command:
			if skipped(e.Label, skip) {
				continue
			}
			job.Items = append(job.Items, Item{Index: i, Command: e})
		}
	}
	if len(job.Items) == 0 {
		return Job{}, ErrEmptyBlock
	}
	return job, nil
}

func skipped(label string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(label, m) {
			return true
		}
	}
	return false
}
