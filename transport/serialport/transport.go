/*
 * commando: interactive prompted-shell automation engine
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package serialport implements transport.Transport over a local serial
// device (8-N-1 by default, raw mode, no secondary/stderr stream).
package serialport

import (
	"context"
	"errors"
	"sync"
	"time"

	serial "github.com/daedaluz/goserial"

	"github.com/thyth-tools/commando/transport"
)

// Parity selects the serial parity bit configuration.
type Parity string

const (
	ParityNone Parity = "none"
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// Config carries the serial-specific fields of the option set (spec.md §6).
type Config struct {
	Path     string
	Speed    uint32
	DataBits int
	Parity   Parity
}

// Transport drives a shell over a local serial device.
type Transport struct {
	cfg Config

	mu     sync.Mutex
	active bool
	port   *serial.Port

	stdoutSink transport.StdoutSink
}

// New constructs a serial transport. Path must be non-empty; validation of
// the full option set happens in package config before this is built.
func New(cfg Config) *Transport {
	if cfg.Speed == 0 {
		cfg.Speed = 115200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.Parity == "" {
		cfg.Parity = ParityNone
	}
	return &Transport{cfg: cfg}
}

var errNoPort = errors.New("serialport: not connected")

func (t *Transport) Connect(_ context.Context) error {
	port, err := serial.Open(t.cfg.Path, serial.NewOptions().SetReadTimeout(50*time.Millisecond))
	if err != nil {
		return &transport.ConnectError{Transport: "serialport", Err: err}
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		_ = port.Close()
		return &transport.ConnectError{Transport: "serialport", Err: err}
	}
	attrs.MakeRaw()
	attrs.SetCustomSpeed(t.cfg.Speed)

	attrs.Cflag &= ^serial.CSIZE
	switch t.cfg.DataBits {
	case 5:
		attrs.Cflag |= serial.CS5
	case 6:
		attrs.Cflag |= serial.CS6
	case 7:
		attrs.Cflag |= serial.CS7
	default:
		attrs.Cflag |= serial.CS8
	}

	switch t.cfg.Parity {
	case ParityEven:
		attrs.Cflag |= serial.PARENB
		attrs.Cflag &= ^serial.PARODD
	case ParityOdd:
		attrs.Cflag |= serial.PARENB | serial.PARODD
	default:
		attrs.Cflag &= ^serial.PARENB
	}

	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		_ = port.Close()
		return &transport.ConnectError{Transport: "serialport", Err: err}
	}

	t.mu.Lock()
	t.port = port
	t.active = true
	t.mu.Unlock()

	go t.pump(port)

	return nil
}

func (t *Transport) pump(port *serial.Port) {
	buf := make([]byte, 4096)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.mu.Lock()
			sink := t.stdoutSink
			t.mu.Unlock()
			if sink != nil {
				sink(chunk)
			}
		}
		if err != nil {
			if errors.Is(err, serial.ErrClosed) {
				return
			}
			// timeouts are expected (ReadTimeout is used to bound the pump's
			// blocking read so Disconnect can observe port closure promptly)
			continue
		}
	}
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	port := t.port
	t.active = false
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (t *Transport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return errNoPort
	}
	_, err := port.Write(data)
	return err
}

func (t *Transport) RegisterStdout(sink transport.StdoutSink) {
	t.mu.Lock()
	t.stdoutSink = sink
	t.mu.Unlock()
}

// RegisterStderr is a no-op: a serial line has no secondary stream.
func (t *Transport) RegisterStderr(transport.StderrSink) {}

func (t *Transport) IOStep(body func() bool) {
	for {
		time.Sleep(2 * time.Millisecond)
		if !body() {
			return
		}
	}
}
