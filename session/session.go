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

// Package session implements the prompted command driver: the state
// machine and buffering discipline that turns a raw bidirectional byte
// stream (package transport) into a synchronous Exec(command) -> (output,
// exitCode) interface, per SPEC_FULL.md §4.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/hooks"
	"github.com/thyth-tools/commando/transport"
	"github.com/thyth-tools/commando/transport/serialport"
	"github.com/thyth-tools/commando/transport/sshpty"
)

// GetExitCodeFunc is the dialect hook that retrieves the exit status of the
// most recently completed command. The default (see exec.go) issues
// Options.ExitCodeCommand and parses its output; dialects that cannot
// retrieve exit codes (e.g. a menu-driven device console) supply one that
// always returns ExitUndefined.
type GetExitCodeFunc func(ctx context.Context, s *Session) ExitCode

// Monitor observes each chunk of output as it is assembled. Returning a
// non-empty string queues it (plus the line ending) back to the remote
// shell — used by dialects that need to answer an interactive prompt mid
// command (spec.md §4.2 step 5).
type Monitor func(chunk []byte, kind transport.Kind) string

// Session is one active interaction with a remote shell (spec.md §3).
type Session struct {
	opts atomicOptions

	transport   transport.Transport
	lineEnding  string
	getExitCode GetExitCodeFunc
	hooks       *hooks.Registry
	logger      *slog.Logger

	mu               sync.Mutex
	running          bool
	completed        bool
	current          triple
	stack            bufferStack
	prompt           *promptMatcher
	queue            *inputQueue
	lastOutputTime   time.Time
	waitingForEchoOf []byte
	lastExitCode     ExitCode
	monitor          Monitor
	ignoreIOError    bool

	runErr  chan error
	doneRun chan struct{}
}

// atomicOptions lets Session.options() read a consistent *config.Options
// snapshot without holding the main lock across a hook callback, mirroring
// spec.md §3's "option map pointer swapped atomically" invariant.
type atomicOptions struct {
	mu    sync.Mutex
	value *config.Options
}

func (a *atomicOptions) load() *config.Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

func (a *atomicOptions) store(o *config.Options) {
	a.mu.Lock()
	a.value = o
	a.mu.Unlock()
}

// New builds a Session from validated options and an explicit hook
// registry (typically produced by a dialect's constructor composing over
// hooks.NewRegistry(nil)). getExitCode defaults to the bash-style "echo
// $?" retrieval; dialects that cannot support it pass their own.
func New(opts *config.Options, reg *hooks.Registry, getExitCode GetExitCodeFunc, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		return nil, &config.ErrInvalidOption{Field: "options", Reason: "must not be nil"}
	}
	if reg == nil {
		reg = hooks.NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if getExitCode == nil {
		getExitCode = defaultGetExitCode
	}

	var t transport.Transport
	switch opts.Transport {
	case config.SSH:
		t = sshpty.New(opts.SSH)
	case config.Serial:
		t = serialport.New(opts.Serial)
	default:
		return nil, &config.ErrInvalidOption{Field: "transport", Reason: "unrecognized"}
	}

	return newSession(t, opts, reg, getExitCode, logger), nil
}

// NewWithTransport builds a Session over an already-constructed transport,
// bypassing the Kind-based selection New performs. Package transporttest's
// fake implements transport.Transport for exactly this purpose, letting
// tests (in this module or a caller's) drive a Session without a live SSH
// host or serial device.
func NewWithTransport(t transport.Transport, opts *config.Options, reg *hooks.Registry, getExitCode GetExitCodeFunc, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		return nil, &config.ErrInvalidOption{Field: "options", Reason: "must not be nil"}
	}
	if t == nil {
		return nil, &config.ErrInvalidOption{Field: "transport", Reason: "must not be nil"}
	}
	if reg == nil {
		reg = hooks.NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if getExitCode == nil {
		getExitCode = defaultGetExitCode
	}
	return newSession(t, opts, reg, getExitCode, logger), nil
}

// newSession builds a Session over an already-constructed transport.
func newSession(t transport.Transport, opts *config.Options, reg *hooks.Registry, getExitCode GetExitCodeFunc, logger *slog.Logger) *Session {
	s := &Session{
		transport:    t,
		lineEnding:   "\n",
		getExitCode:  getExitCode,
		hooks:        reg,
		logger:       logger,
		prompt:       newPromptMatcher(opts.Prompt),
		queue:        newInputQueue(),
		lastExitCode: ExitNone,
	}
	s.opts.store(opts)
	return s
}

func (s *Session) options() *config.Options { return s.opts.load() }

// Stdout returns everything written to the stdout stream, excluding the
// active prompt (spec.md §3 invariant 2).
func (s *Session) Stdout() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.stdout
}

// Stderr returns everything written to the stderr stream.
func (s *Session) Stderr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.stderr
}

// CombinedOutput returns the full transcript, prompts included.
func (s *Session) CombinedOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.combined
}

// LastExitCode returns the exit status recorded by the most recent Exec
// that retrieved one.
func (s *Session) LastExitCode() ExitCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExitCode
}

// IsRunning reports whether the session is between setup and teardown.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ChangeQuit atomically swaps the teardown quit command (spec.md §9's
// "frozen-options mutation hack"). Used by the device dialect's RestartNow
// handling to substitute a reboot command.
func (s *Session) ChangeQuit(quit string) {
	s.opts.store(s.options().ChangeQuit(quit))
}
