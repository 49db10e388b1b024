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

// Package transporttest provides an in-memory transport.Transport for
// exercising package session without a real SSH host or serial device. It
// is grounded on the same io.ReadWriteCloser-wrapping idiom the teacher
// uses for its SSH session plumbing: Fake shuttles bytes between a
// simulated remote-shell goroutine and whatever sinks the session under
// test registers.
package transporttest

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/thyth-tools/commando/transport"
)

// Responder is invoked once per line of input written to the fake
// transport (a "line" being everything up to and including the newline
// that completed it) and returns the bytes the simulated remote should
// write back on stdout and stderr. Returning nil, nil produces no output.
type Responder func(line []byte) (stdout, stderr []byte)

// Fake is a transport.Transport backed by a Responder instead of a real
// byte-stream carrier.
type Fake struct {
	banner    []byte
	respond   Responder
	connectFn func(ctx context.Context) error

	mu     sync.Mutex
	active bool
	stdout transport.StdoutSink
	stderr transport.StderrSink
	inbox  [][]byte
	pending []byte

	writes chan []byte
	done   chan struct{}
}

// New builds a fake transport. banner is delivered on stdout immediately
// after Connect, before any input is processed (simulating a login banner
// and the first shell prompt). respond may be nil, in which case the fake
// never produces output on its own — useful for tests that drive onBytes
// directly and only need Connect/Disconnect/Write bookkeping.
func New(banner string, respond Responder) *Fake {
	return &Fake{banner: []byte(banner), respond: respond}
}

// WithConnectError makes the next Connect call fail, simulating a dial or
// handshake failure.
func (f *Fake) WithConnectError(fn func(ctx context.Context) error) *Fake {
	f.connectFn = fn
	return f
}

func (f *Fake) Connect(ctx context.Context) error {
	if f.connectFn != nil {
		if err := f.connectFn(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.active = true
	f.writes = make(chan []byte, 64)
	f.done = make(chan struct{})
	f.mu.Unlock()

	go f.remote()

	if len(f.banner) > 0 {
		f.deliver(transport.Stdout, f.banner)
	}
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return nil
	}
	f.active = false
	close(f.done)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Fake) Write(data []byte) error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return transport.ErrNotConnected
	}
	ch := f.writes
	f.mu.Unlock()

	select {
	case ch <- append([]byte(nil), data...):
	default:
	}
	return nil
}

func (f *Fake) RegisterStdout(sink transport.StdoutSink) {
	f.mu.Lock()
	f.stdout = sink
	f.mu.Unlock()
}

func (f *Fake) RegisterStderr(sink transport.StderrSink) {
	f.mu.Lock()
	f.stderr = sink
	f.mu.Unlock()
}

// IOStep steps at a fixed 2ms cadence, matching the pace the real
// transports use, for as long as body returns true.
func (f *Fake) IOStep(body func() bool) {
	for body() {
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *Fake) deliver(kind transport.Kind, data []byte) {
	f.mu.Lock()
	var sink func([]byte)
	switch kind {
	case transport.Stdout:
		if f.stdout != nil {
			sink = f.stdout
		}
	case transport.Stderr:
		if f.stderr != nil {
			sink = f.stderr
		}
	}
	f.mu.Unlock()
	if sink != nil {
		sink(data)
	}
}

// remote is the simulated remote-shell strand: it echoes every byte
// written to it (as a real PTY in cooked mode would) and, once a line is
// complete, asks Responder for the command's output.
func (f *Fake) remote() {
	f.mu.Lock()
	done := f.done
	writes := f.writes
	f.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case chunk, ok := <-writes:
			if !ok {
				return
			}
			f.deliver(transport.Stdout, chunk) // echo, as a PTY would
			f.mu.Lock()
			f.pending = append(f.pending, chunk...)
			var lines [][]byte
			for {
				idx := bytes.IndexByte(f.pending, '\n')
				if idx < 0 {
					break
				}
				lines = append(lines, append([]byte(nil), f.pending[:idx+1]...))
				f.pending = f.pending[idx+1:]
			}
			respond := f.respond
			f.mu.Unlock()

			for _, line := range lines {
				if respond == nil {
					break
				}
				stdout, stderr := respond(line)
				if len(stdout) > 0 {
					f.deliver(transport.Stdout, stdout)
				}
				if len(stderr) > 0 {
					f.deliver(transport.Stderr, stderr)
				}
			}
		}
	}
}
