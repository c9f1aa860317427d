// Package replay selects blocks of SBUS commands from a parsed log and
// replays them on a fixed cadence through a Transmitter.
package replay

import (
	"fmt"
	"log/slog"
	"time"

	"sbustui/internal/sbuslog"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultPulse    = 300 * time.Millisecond
)

// Transmitter writes one frame to the robot link.
type Transmitter interface {
	Transmit(payload []byte) error
}

type State int

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Source tells whether a command went out from a block run or by hand.
type Source int

const (
	Auto Source = iota
	Manual
)

func (s Source) String() string {
	if s == Manual {
		return "manual"
	}
	return "auto"
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventSent
	EventFailed
	EventCompleted
	EventCancelled
	EventReset
	EventLoaded
)

// Event is delivered to subscribers after every state change.
type Event struct {
	Kind     EventKind
	Source   Source
	Index    int // entry index of the command, -1 when not applicable
	Command  *sbuslog.Command
	Job      *Job
	Progress Progress
	Err      error
}

// Progress is the (sent, total) pair shown to the operator.
type Progress struct {
	Sent  int
	Total int
}

func (p Progress) String() string { return fmt.Sprintf("%d / %d", p.Sent, p.Total) }

// Snapshot is a read-only copy of the engine state for display.
type Snapshot struct {
	State    State
	Job      *Job
	Cursor   int
	Progress Progress
}

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Engine replays a block of commands, one per tick. It is not safe for
// concurrent use: all calls, including scheduled ticks, must share one
// timeline (see Scheduler).
type Engine struct {
	tx       Transmitter
	sched    Scheduler
	interval time.Duration
	logger   *slog.Logger

	entries []sbuslog.Entry
	sent    map[int]bool

	state    State
	job      *Job
	cursor   int
	progress Progress

	timer Timer
	gen   uint64

	subs []func(Event)
}

func NewEngine(tx Transmitter, sched Scheduler, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		tx:       tx,
		sched:    sched,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "replay"),
		sent:     make(map[int]bool),
	}
}

// Subscribe registers fn for every subsequent event.
func (e *Engine) Subscribe(fn func(Event)) {
	e.subs = append(e.subs, fn)
}

func (e *Engine) emit(ev Event) {
	ev.Progress = e.progress
	for _, fn := range e.subs {
		fn(ev)
	}
}

// Load replaces the log. Any running block is stopped and all marks and
// counters are reset.
func (e *Engine) Load(entries []sbuslog.Entry) {
	e.stopTimer()
	e.entries = entries
	e.sent = make(map[int]bool)
	e.state = Idle
	e.job = nil
	e.cursor = 0
	e.progress = Progress{Total: sbuslog.CountCommands(entries)}
	e.logger.Info("log loaded", "entries", len(entries), "commands", e.progress.Total)
	e.emit(Event{Kind: EventLoaded, Index: -1})
}

func (e *Engine) Entries() []sbuslog.Entry { return e.entries }

func (e *Engine) State() State { return e.state }

func (e *Engine) Progress() Progress { return e.progress }

// Sent reports whether the entry at index has been marked sent.
func (e *Engine) Sent(index int) bool { return e.sent[index] }

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{State: e.state, Job: e.job, Cursor: e.cursor, Progress: e.progress}
}

// Select builds the job for the header at index from the loaded log.
func (e *Engine) Select(index int, skip []string) (Job, error) {
	return SelectBlock(e.entries, index, skip)
}

// Start begins replaying job. The first command goes out one interval later.
func (e *Engine) Start(job Job) error {
	if e.state == Running {
		return ErrAlreadyRunning
	}
	if job.Len() == 0 {
		return ErrEmptyBlock
	}
	e.job = &job
	e.cursor = 0
	e.progress = Progress{Sent: 0, Total: job.Len()}
	e.state = Running
	e.logger.Info("block started", "run_id", job.ID, "block", job.Title, "commands", job.Len())
	e.emit(Event{Kind: EventStarted, Index: job.Header, Job: e.job})
	e.schedule()
	return nil
}

// schedule arms the next tick. Each arming invalidates every callback
// handed out before it.
func (e *Engine) schedule() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = e.sched.AfterFunc(e.interval, func() {
		if gen != e.gen || e.state != Running {
			return
		}
		e.Tick()
	})
}

// Tick transmits the next command of the running job. The run completes in
// the same tick that dispatches its last command.
func (e *Engine) Tick() {
	if e.state != Running {
		return
	}
	if e.cursor >= e.job.Len() {
		e.complete()
		return
	}
	item := e.job.Items[e.cursor]
	e.cursor++
	e.dispatch(item, Auto)
	if e.state != Running {
		// a subscriber cancelled or reloaded during dispatch
		return
	}
	if e.cursor >= e.job.Len() {
		e.complete()
		return
	}
	e.schedule()
}

func (e *Engine) complete() {
	e.stopTimer()
	e.state = Completed
	e.logger.Info("block finished", "run_id", e.job.ID, "block", e.job.Title, "sent", e.progress.Sent, "total", e.progress.Total)
	e.emit(Event{Kind: EventCompleted, Index: e.job.Header, Job: e.job})
}

// Cancel stops the running job before its next tick. Marks and progress
// are kept.
func (e *Engine) Cancel() error {
	if e.state != Running {
		return ErrNotRunning
	}
	e.stopTimer()
	e.state = Cancelled
	e.logger.Info("block stopped", "run_id", e.job.ID, "block", e.job.Title, "sent", e.progress.Sent)
	e.emit(Event{Kind: EventCancelled, Index: e.job.Header, Job: e.job})
	return nil
}

func (e *Engine) stopTimer() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// ResetMarks clears every sent mark and zeroes the sent counter. Total is
// recomputed from the loaded log.
func (e *Engine) ResetMarks() {
	e.sent = make(map[int]bool)
	e.progress = Progress{Sent: 0, Total: sbuslog.CountCommands(e.entries)}
	e.emit(Event{Kind: EventReset, Index: -1})
}

// Send transmits the command at index immediately, outside any schedule.
func (e *Engine) Send(index int) error {
	if index < 0 || index >= len(e.entries) {
		return ErrNotACommand
	}
	cmd, ok := e.entries[index].(*sbuslog.Command)
	if !ok {
		return ErrNotACommand
	}
	return e.dispatch(Item{Index: index, Command: cmd}, Manual)
}

// dispatch is the one transmit path for ticks and manual sends. Only a
// successful write counts and marks the entry.
func (e *Engine) dispatch(item Item, src Source) error {
	attrs := []any{"source", src.String(), "label", item.Command.Label, "hex", item.Command.RawHex}
	if e.job != nil && src == Auto {
		attrs = append(attrs, "run_id", e.job.ID)
	}
	if err := e.tx.Transmit(item.Command.Payload); err != nil {
		e.logger.Warn("transmit failed", append(attrs, "error", err)...)
		e.emit(Event{Kind: EventFailed, Source: src, Index: item.Index, Command: item.Command, Job: e.job, Err: err})
		return err
	}
	e.sent[item.Index] = true
	e.progress.Sent++
	e.logger.Debug("command sent", attrs...)
	e.emit(Event{Kind: EventSent, Source: src, Index: item.Index, Command: item.Command, Job: e.job})
	return nil
}
