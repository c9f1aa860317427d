package testsupport

import "bytes"

// Transmitter records every payload it accepts. Fail decides per call
// (0-based) whether to return an error instead.
type Transmitter struct {
	Frames [][]byte
	Calls  int
	Fail   func(call int, payload []byte) error
}

func (t *Transmitter) Transmit(payload []byte) error {
	call := t.Calls
	t.Calls++
	if t.Fail != nil {
		if err := t.Fail(call, payload); err != nil {
			return err
		}
	}
	t.Frames = append(t.Frames, bytes.Clone(payload))
	return nil
}
