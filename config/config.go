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

// Package config validates and freezes the option set a Session is built
// from (spec.md §6). Options are immutable once returned from New; the one
// sanctioned mutation is ChangeQuit, which atomically substitutes a new
// immutable snapshot rather than mutating fields in place.
package config

import (
	"fmt"
	"time"

	"github.com/thyth-tools/commando/transport/serialport"
	"github.com/thyth-tools/commando/transport/sshpty"
)

// Kind discriminates which transport this Options builds.
type Kind int

const (
	SSH Kind = iota
	Serial
)

// NonZeroExitPolicy controls what Exec does when retrieving a non-zero exit
// code.
type NonZeroExitPolicy int

const (
	Ignore NonZeroExitPolicy = iota
	Raise
)

// UnbufferedInput selects how the input queue chunks queued bytes.
type UnbufferedInput int

const (
	InputBuffered UnbufferedInput = iota // whole chunks
	InputChar                            // one byte at a time
	InputEcho                            // one byte at a time, gated on echo
)

// Options is the frozen, validated configuration for a Session. Treat every
// field as read-only; use ChangeQuit to "mutate" Quit.
type Options struct {
	Transport Kind

	Prompt              string
	RetrieveExitCode    bool
	OnNonZeroExitCode   NonZeroExitPolicy
	SilenceTimeout      time.Duration
	CommandTimeout      time.Duration
	UnbufferedInput     UnbufferedInput
	Quit                string
	ExitCodeCommand     string
	ExitCodeTimeout     time.Duration

	SSH    sshpty.Config
	Serial serialport.Config
}

// Option mutates an in-progress Options during New.
type Option func(*Options)

func WithTransportSSH(cfg sshpty.Config) Option {
	return func(o *Options) { o.Transport = SSH; o.SSH = cfg }
}

func WithTransportSerial(cfg serialport.Config) Option {
	return func(o *Options) { o.Transport = Serial; o.Serial = cfg }
}

func WithPrompt(prompt string) Option          { return func(o *Options) { o.Prompt = prompt } }
func WithRetrieveExitCode(b bool) Option       { return func(o *Options) { o.RetrieveExitCode = b } }
func WithOnNonZeroExitCode(p NonZeroExitPolicy) Option {
	return func(o *Options) { o.OnNonZeroExitCode = p }
}
func WithSilenceTimeout(d time.Duration) Option { return func(o *Options) { o.SilenceTimeout = d } }
func WithCommandTimeout(d time.Duration) Option { return func(o *Options) { o.CommandTimeout = d } }
func WithUnbufferedInput(m UnbufferedInput) Option {
	return func(o *Options) { o.UnbufferedInput = m }
}
func WithQuit(cmd string) Option { return func(o *Options) { o.Quit = cmd } }
func WithExitCodeCommand(cmd string) Option {
	return func(o *Options) { o.ExitCodeCommand = cmd }
}
func WithExitCodeTimeout(d time.Duration) Option {
	return func(o *Options) { o.ExitCodeTimeout = d }
}

// New builds and validates an immutable Options snapshot.
func New(opts ...Option) (*Options, error) {
	o := &Options{
		Prompt:          "~~#",
		Quit:            "exit",
		ExitCodeCommand: "echo $?",
		ExitCodeTimeout: time.Second,
	}
	for _, apply := range opts {
		apply(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// ErrInvalidOption reports a rejected option value.
type ErrInvalidOption struct {
	Field  string
	Reason string
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

func (o *Options) validate() error {
	switch o.Transport {
	case SSH:
		if o.SSH.User == "" {
			return &ErrInvalidOption{"ssh.user", "required, non-empty"}
		}
	case Serial:
		if o.Serial.Path == "" {
			return &ErrInvalidOption{"serial.path", "required, non-empty"}
		}
	default:
		return &ErrInvalidOption{"transport", "must be SSH or Serial"}
	}
	if o.Quit == "" {
		return &ErrInvalidOption{"quit", "must not be empty"}
	}
	return nil
}

// ChangeQuit returns a new Options with Quit replaced, leaving the receiver
// untouched. The device dialect's RestartNow handling calls this to swap
// the teardown command to a reboot command without mutating shared state
// in place.
func (o *Options) ChangeQuit(quit string) *Options {
	clone := *o
	clone.Quit = quit
	return &clone
}
