// Package sbuslog parses captured calibration logs into an ordered sequence
// of block headers and SBUS command frames.
//
// A log is plain text, one directive per line:
//
//	Forward calibration
//	fwd slow   SBUS: 0F E0 03 1F
//	alt (A)    SBUS: 0F E0 03 20
//	Backward calibration
//	bak slow   SBUS: 0F 20 FC 1F
//
// Lines carrying the SBUS: marker are commands; every other non-blank line
// starts a new block.
package sbuslog

import "fmt"

// Entry is one parsed log line: either a *Header or a *Command.
type Entry interface {
	isEntry()
}

// Header marks the start of a block. It carries no payload.
type Header struct {
	Text string
}

// Command is a transmittable frame with the label it was logged under.
type Command struct {
	Label   string
	Payload []byte
	RawHex  string // canonical upper-case pairs, single-space separated
}

func (*Header) isEntry()  {}
func (*Command) isEntry() {}

func (h *Header) String() string { return "--- " + h.Text + " ---" }

func (c *Command) String() string { return fmt.Sprintf("%s | %s", c.Label, c.RawHex) }

// CountCommands returns the number of Command entries in entries.
func CountCommands(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if _, ok := e.(*Command); ok {
			n++
		}
	}
	return n
}

// Block summarises one header and the commands that follow it.
type Block struct {
	Index    int // entry index of the header
	Title    string
	Commands int
}

// Blocks lists every header in entries together with its command count.
// Commands before the first header are not part of any block.
func Blocks(entries []Entry) []Block {
	var out []Block
	for i, e := range entries {
		switch v := e.(type) {
		case *Header:
			out = append(out, Block{Index: i, Title: v.Text})
		case *Command:
			if len(out) > 0 {
				out[len(out)-1].Commands++
			}
		}
	}
	return out
}

// FindBlock returns the entry index of the first header whose text equals
// title, or -1.
func FindBlock(entries []Entry, title string) int {
	for i, e := range entries {
		if h, ok := e.(*Header); ok && h.Text == title {
			return i
		}
	}
	return -1
}
