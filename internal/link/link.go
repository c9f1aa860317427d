// Package link owns the serial connection to the robot receiver.
package link

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	serial "github.com/tarm/serial"
)

const (
	MinBaud     = 1200
	MaxBaud     = 921600
	DefaultBaud = 115200
)

// ErrPortClosed is returned when writing with no open port.
var ErrPortClosed = errors.New("port not open")

// IOError wraps a failure reported by the serial device.
type IOError struct {
	Port string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("write %s: %v", e.Port, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// ValidateBaud rejects rates outside the supported range.
func ValidateBaud(baud int) error {
	if baud < MinBaud || baud > MaxBaud {
		return fmt.Errorf("baud %d out of range %d-%d", baud, MinBaud, MaxBaud)
	}
	return nil
}

// Opener opens the device at name. Tests swap it for a fake.
type Opener func(name string, baud int) (io.WriteCloser, error)

func openTarm(name string, baud int) (io.WriteCloser, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: time.Millisecond * 30}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Link is a reopenable serial link. The zero value is not usable; call New.
type Link struct {
	mu      sync.Mutex
	open    Opener
	lockDir string

	port io.WriteCloser
	lock *flock.Flock
	name string
	baud int
}

// Option customises a Link.
type Option func(*Link)

// WithOpener replaces the tarm/serial opener.
func WithOpener(o Opener) Option { return func(l *Link) { l.open = o } }

// WithLockDir sets where per-device lock files live. Empty disables locking.
func WithLockDir(dir string) Option { return func(l *Link) { l.lockDir = dir } }

func New(opts ...Option) *Link {
	l := &Link{open: openTarm, lockDir: os.TempDir()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Open connects to name at baud, closing any port already open. Only one
// process may hold a given device.
func (l *Link) Open(name string, baud int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("no port selected")
	}
	if err := ValidateBaud(baud); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()

	var lock *flock.Flock
	if l.lockDir != "" {
		lock = flock.New(filepath.Join(l.lockDir, "sbustui-"+lockName(name)+".lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		if !ok {
			return fmt.Errorf("%s is in use by another sbustui", name)
		}
	}

	p, err := l.open(name, baud)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	l.port, l.lock, l.name, l.baud = p, lock, name, baud
	return nil
}

func lockName(port string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", ".", "_")
	return strings.Trim(r.Replace(port), "_")
}

// Close releases the port. Closing a closed link is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Link) closeLocked() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	if l.lock != nil {
		_ = l.lock.Unlock()
	}
	l.port, l.lock, l.name, l.baud = nil, nil, "", 0
	return err
}

// IsOpen reports whether a port is connected.
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Port returns the open device name and baud, or "" and 0.
func (l *Link) Port() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name, l.baud
}

// Transmit writes payload in full. It does not wait for any reply.
func (l *Link) Transmit(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return ErrPortClosed
	}
	n, err := l.port.Write(payload)
	if err != nil {
		return &IOError{Port: l.name, Err: err}
	}
	if n != len(payload) {
		return &IOError{Port: l.name, Err: io.ErrShortWrite}
	}
	return nil
}
