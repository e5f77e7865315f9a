package serial

import (
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 60 * time.Second
)

// Port is an open serial connection used as a console output stream.
type Port struct {
	port serial.Port
	name string

	mu     sync.Mutex
	closed bool
}

// Open opens portName at baudRate, 8N1. A Read returns no bytes once
// readTimeout passes without data.
func Open(portName string, baudRate int, readTimeout time.Duration) (*Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	// Output of a previous run may still sit in the driver's buffer.
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}

	return &Port{port: port, name: portName}, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Close closes the port. It is safe to call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

var _ io.ReadCloser = (*Port)(nil)
