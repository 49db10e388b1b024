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

// Package transport defines the capability set a prompted command driver
// needs from a byte-stream carrier. Two concrete implementations exist:
// transport/sshpty (an SSH channel with a requested pseudo-terminal) and
// transport/serialport (a serial device). The driver in package session
// never distinguishes between them past this interface.
package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by transporttest.Fake's Write when called
// before Connect or after Disconnect. The sshpty and serialport transports
// report their own not-connected errors instead.
var ErrNotConnected = errors.New("transport: not connected")

// Kind discriminates the stream a chunk of inbound bytes arrived on.
type Kind int

const (
	Stdout Kind = iota
	Stderr
)

// StdoutSink receives inbound bytes read from the transport's primary stream.
type StdoutSink func(data []byte)

// StderrSink receives inbound bytes read from the transport's secondary
// (extended data, for SSH) stream. Transports that have no secondary stream
// (serial) never invoke a registered stderr sink.
type StderrSink func(data []byte)

// Transport is the capability set the command driver requires from a
// carrier of bytes. Connect must block until the channel is usable or
// return a connection error. Write is non-blocking best effort, and must
// be called only by the reactor strand that also drives IOStep. RegisterStdout
// and RegisterStderr each install a single sink; calling them again replaces
// the previous sink. IOStep runs one step of the transport's internal event
// pump, then invokes body; it keeps stepping while body returns true, and
// must bound each step to a few milliseconds so a caller polling a
// condition inside body can make timely progress even while the transport
// is otherwise idle.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Active() bool
	Write(data []byte) error
	RegisterStdout(sink StdoutSink)
	RegisterStderr(sink StderrSink)
	IOStep(body func() bool)
}

// ConnectError wraps a failure to establish the underlying channel.
type ConnectError struct {
	Transport string
	Err       error
}

func (e *ConnectError) Error() string {
	return e.Transport + ": connect failed: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }
