package actuator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.bug.st/serial"
)

// PortOptions describes the serial connection to the arm's driver board
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and fills defaults for unset values
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// Port is the part of a serial port the transport needs
type Port interface {
	io.ReadWriteCloser
}

// SerialTransport writes newline terminated commands to the driver board.
// Only the state query waits for a reply: the board echoes other commands,
// and those lines are skipped while looking for the feedback line.
type SerialTransport struct {
	port    Port
	timeout time.Duration

	mu      sync.Mutex
	pending []byte
}

// OpenSerial opens the serial device at path
func OpenSerial(path string, opts PortOptions, timeout time.Duration) (*SerialTransport, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransport, path, err)
	}
	// short reads let Do notice its deadline and ctx
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout: %w", ErrTransport, err)
	}
	log.Infof("Opened serial transport %s (%d baud)", path, mode.BaudRate)
	return NewSerialTransport(port, timeout), nil
}

// NewSerialTransport wraps an already open port
func NewSerialTransport(port Port, timeout time.Duration) *SerialTransport {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SerialTransport{port: port, timeout: timeout}
}

func (t *SerialTransport) Do(ctx context.Context, cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := append(append([]byte(nil), bytes.TrimSpace(cmd)...), '\n')
	if _, err := t.port.Write(line); err != nil {
		return nil, fmt.Errorf("%w: write: %w", ErrTransport, err)
	}
	if gjson.GetBytes(cmd, "T").Int() != cmdState {
		return nil, nil
	}

	deadline := time.Now().Add(t.timeout)
	buf := make([]byte, 256)
	for {
		for {
			reply, ok := t.nextLine()
			if !ok {
				break
			}
			if gjson.GetBytes(reply, "T").Int() == cmdFeedback {
				return reply, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no feedback within %v", ErrTransport, t.timeout)
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.pending = append(t.pending, buf[:n]...)
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		if n == 0 {
			// idle line
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// nextLine pops one complete, non-empty line from the pending buffer
func (t *SerialTransport) nextLine() ([]byte, bool) {
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			return nil, false
		}
		line := bytes.TrimSpace(t.pending[:i])
		t.pending = t.pending[i+1:]
		if len(line) > 0 {
			return append([]byte(nil), line...), true
		}
	}
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}
