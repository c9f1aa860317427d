package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sbustui/internal/replay"
)

// scheduledMsg carries a replay callback into the update loop so that ticks
// and key presses share one timeline.
type scheduledMsg struct{ fn func() }

// teaScheduler implements replay.Scheduler on top of a running program.
type teaScheduler struct {
	send func(tea.Msg)
}

func (s *teaScheduler) AfterFunc(d time.Duration, fn func()) replay.Timer {
	return time.AfterFunc(d, func() {
		if s.send != nil {
			s.send(scheduledMsg{fn: fn})
		}
	})
}
