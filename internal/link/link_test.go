package link

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"go.bug.st/serial/enumerator"
)

type fakePort struct {
	buf     bytes.Buffer
	closed  bool
	failErr error
	short   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failErr != nil {
		return 0, p.failErr
	}
	if p.short && len(b) > 1 {
		p.buf.Write(b[:1])
		return 1, nil
	}
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func fakeOpener(ports map[string]*fakePort) Opener {
	return func(name string, baud int) (io.WriteCloser, error) {
		p, ok := ports[name]
		if !ok {
			return nil, errors.New("no such device")
		}
		p.closed = false
		return p, nil
	}
}

func TestTransmitClosed(t *testing.T) {
	l := New(WithOpener(fakeOpener(nil)), WithLockDir(""))
	if err := l.Transmit([]byte{1}); !errors.Is(err, ErrPortClosed) {
		t.Fatalf("got %v want ErrPortClosed", err)
	}
}

func TestOpenTransmitClose(t *testing.T) {
	port := &fakePort{}
	l := New(WithOpener(fakeOpener(map[string]*fakePort{"/dev/ttyUSB0": port})), WithLockDir(t.TempDir()))

	if err := l.Open("/dev/ttyUSB0", DefaultBaud); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !l.IsOpen() {
		t.Fatal("expected link open")
	}
	if name, baud := l.Port(); name != "/dev/ttyUSB0" || baud != DefaultBaud {
		t.Fatalf("Port: got %s@%d", name, baud)
	}
	if err := l.Transmit([]byte{0x0F, 0xE0}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if !bytes.Equal(port.buf.Bytes(), []byte{0x0F, 0xE0}) {
		t.Fatalf("written: % X", port.buf.Bytes())
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed || l.IsOpen() {
		t.Fatal("expected port closed")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := l.Transmit([]byte{1}); !errors.Is(err, ErrPortClosed) {
		t.Fatalf("after close: got %v", err)
	}
}

func TestTransmitIOError(t *testing.T) {
	cause := errors.New("device unplugged")
	port := &fakePort{failErr: cause}
	l := New(WithOpener(fakeOpener(map[string]*fakePort{"COM3": port})), WithLockDir(""))
	if err := l.Open("COM3", 9600); err != nil {
		t.Fatalf("Open: %v", err)
	}

	err := l.Transmit([]byte{1, 2})
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("got %v want IOError", err)
	}
	if ioErr.Port != "COM3" || !errors.Is(err, cause) {
		t.Fatalf("unexpected error: %v", err)
	}

	port.failErr = nil
	port.short = true
	if err := l.Transmit([]byte{1, 2}); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("short write: got %v", err)
	}
}

func TestOpenValidation(t *testing.T) {
	l := New(WithOpener(fakeOpener(map[string]*fakePort{"a": {}})), WithLockDir(""))
	cases := []struct {
		name string
		port string
		baud int
	}{
		{"empty port", "  ", DefaultBaud},
		{"baud too low", "a", MinBaud - 1},
		{"baud too high", "a", MaxBaud + 1},
		{"missing device", "b", DefaultBaud},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := l.Open(tc.port, tc.baud); err == nil {
				t.Fatal("expected error")
			}
			if l.IsOpen() {
				t.Fatal("link open after failed Open")
			}
		})
	}
	if err := l.Open("a", MinBaud); err != nil {
		t.Fatalf("min baud: %v", err)
	}
	if err := l.Open("a", MaxBaud); err != nil {
		t.Fatalf("max baud: %v", err)
	}
}

func TestOpenLocksDevice(t *testing.T) {
	dir := t.TempDir()
	ports := map[string]*fakePort{"/dev/ttyACM0": {}}
	first := New(WithOpener(fakeOpener(ports)), WithLockDir(dir))
	second := New(WithOpener(fakeOpener(ports)), WithLockDir(dir))

	if err := first.Open("/dev/ttyACM0", DefaultBaud); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	err := second.Open("/dev/ttyACM0", DefaultBaud)
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Fatalf("second Open: got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := second.Open("/dev/ttyACM0", DefaultBaud); err != nil {
		t.Fatalf("Open after release: %v", err)
	}
	_ = second.Close()
}

func TestReopenSwitchesPort(t *testing.T) {
	a, b := &fakePort{}, &fakePort{}
	l := New(WithOpener(fakeOpener(map[string]*fakePort{"a": a, "b": b})), WithLockDir(t.TempDir()))
	if err := l.Open("a", DefaultBaud); err != nil {
		t.Fatalf("Open a: %v", err)
	}
	if err := l.Open("b", 57600); err != nil {
		t.Fatalf("Open b: %v", err)
	}
	if !a.closed {
		t.Fatal("previous port left open")
	}
	if name, baud := l.Port(); name != "b" || baud != 57600 {
		t.Fatalf("Port: got %s@%d", name, baud)
	}
}

func TestListPortsSorted(t *testing.T) {
	orig := detailedPorts
	t.Cleanup(func() { detailedPorts = orig })
	detailedPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001"},
			{Name: "/dev/ttyACM0"},
		}, nil
	}

	ports, err := ListPorts()
	if err != nil {
		t.Fatalf("ListPorts: %v", err)
	}
	if len(ports) != 2 || ports[0].Name != "/dev/ttyACM0" || !ports[1].USB || ports[1].VID != "0403" {
		t.Fatalf("unexpected ports: %+v", ports)
	}
	names, err := PortNames()
	if err != nil || strings.Join(names, ",") != "/dev/ttyACM0,/dev/ttyUSB1" {
		t.Fatalf("PortNames: %v %v", names, err)
	}
}
