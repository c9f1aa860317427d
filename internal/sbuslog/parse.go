package sbuslog

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Marker separates a command label from its hex payload. Matched
// case-insensitively.
const Marker = "SBUS:"

// DecodeError reports a command line whose payload is not valid hex.
type DecodeError struct {
	Line  int // 1-based
	Label string
	Token string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.Label, e.Err)
	}
	return fmt.Sprintf("line %d (%s): bad hex byte %q: %v", e.Line, e.Label, e.Token, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	errTokenLength  = errors.New("want exactly two hex digits")
	errEmptyPayload = fmt.Errorf("no payload after %s", Marker)
)

// Result is the outcome of parsing a log. Lines that failed to decode are
// left out of Entries and reported in Errors, in line order.
type Result struct {
	Entries []Entry
	Errors  []*DecodeError
}

// Parse turns log lines into entries. It never stops early: a malformed
// command only costs its own line.
func Parse(lines []string) Result {
	var res Result
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		at := indexMarker(line)
		if at < 0 {
			res.Entries = append(res.Entries, &Header{Text: line})
			continue
		}
		cmd, err := parseCommand(line[:at], line[at+len(Marker):])
		if err != nil {
			err.Line = i + 1
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Entries = append(res.Entries, cmd)
	}
	return res
}

// ParseCommand decodes a single "<label> SBUS: <hex>" line.
func ParseCommand(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	at := indexMarker(line)
	if at < 0 {
		return nil, fmt.Errorf("missing %s marker", Marker)
	}
	cmd, derr := parseCommand(line[:at], line[at+len(Marker):])
	if derr != nil {
		derr.Line = 1
		return nil, derr
	}
	return cmd, nil
}

// indexMarker finds Marker in s ignoring ASCII case. Byte offsets in s are
// preserved, unlike searching an upper-cased copy.
func indexMarker(s string) int {
	for i := 0; i+len(Marker) <= len(s); i++ {
		match := true
		for j := 0; j < len(Marker); j++ {
			c := s[i+j]
			if 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			if c != Marker[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func parseCommand(prefix, rest string) (*Command, *DecodeError) {
	label := strings.TrimSpace(prefix)
	tokens := strings.Fields(strings.ToUpper(rest))
	if len(tokens) == 0 {
		return nil, &DecodeError{Label: label, Err: errEmptyPayload}
	}
	payload := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) != 2 {
			return nil, &DecodeError{Label: label, Token: tok, Err: errTokenLength}
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, &DecodeError{Label: label, Token: tok, Err: err}
		}
		payload = append(payload, b[0])
	}
	return &Command{
		Label:   label,
		Payload: payload,
		RawHex:  strings.Join(tokens, " "),
	}, nil
}

// Read parses a log from r. Invalid UTF-8 is dropped and a leading BOM is
// ignored; only I/O failures are returned as an error.
func Read(r io.Reader) (Result, error) {
	dec := transform.NewReader(r, transform.Chain(
		unicode.UTF8BOM.NewDecoder(),
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(c rune) bool { return c == utf8.RuneError })),
	))
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("read log: %w", err)
	}
	return Parse(lines), nil
}

// ReadFile parses the log at path.
func ReadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return Read(f)
}
