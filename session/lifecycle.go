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

package session

import (
	"context"
	"errors"
	"time"

	"github.com/thyth-tools/commando/hooks"
	"github.com/thyth-tools/commando/transport"
)

// Script is user automation code driven by Run. It receives the live
// Session and returns ErrQuitNow (or wraps it) to unwind silently, any
// other error to trigger the on_exception chain, or nil on success.
type Script func(s *Session) error

// Run implements the session lifecycle of spec.md §4.8: connect, run setup
// then the user script then teardown on a worker goroutine, step the
// reactor until the worker finishes or the transport dies, then disconnect
// and report whatever exception (if any) the on_exception chain declined to
// handle.
func (s *Session) Run(ctx context.Context, script Script) error {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return ErrSessionCompleted
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.runErr = make(chan error, 1)
	s.doneRun = make(chan struct{})
	s.mu.Unlock()

	s.hooks.Run(hooks.OnBeforeRun, s)

	s.transport.RegisterStdout(func(data []byte) { s.onBytes(transport.Stdout, data) })
	s.transport.RegisterStderr(func(data []byte) { s.onBytes(transport.Stderr, data) })
	s.installMonitor(func(chunk []byte, kind transport.Kind) string {
		s.logger.Debug("session output", "kind", kind, "bytes", len(chunk))
		return ""
	})

	if err := s.transport.Connect(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.completed = true
		s.mu.Unlock()
		return err
	}

	go s.runWorker(ctx, script)

	s.transport.IOStep(func() bool {
		select {
		case <-s.doneRun:
			return false
		default:
		}
		return s.transport.Active()
	})

	_ = s.transport.Disconnect()

	var result error
	select {
	case result = <-s.runErr:
	default:
	}

	s.hooks.Run(hooks.OnAfterRun, s)

	s.mu.Lock()
	s.running = false
	s.completed = true
	s.mu.Unlock()

	return result
}

// runWorker is the worker strand of spec.md §5. It always runs to
// completion (teardown is attempted even after a script error) and reports
// at most one unhandled exception back to the main strand via s.runErr.
func (s *Session) runWorker(ctx context.Context, script Script) {
	defer close(s.doneRun)

	err := s.runBody(ctx, script)
	if err == nil || errors.Is(err, ErrQuitNow) {
		return
	}
	select {
	case s.runErr <- err:
	default:
	}
}

// runBody runs before_init, setup, the script, and teardown in order. A
// script error is offered to on_exception before teardown runs, not after —
// a handler like the device dialect's RestartNow needs to mutate state
// (swap the quit command) before teardown acts on it, not once it's too
// late to matter. ErrQuitNow bypasses on_exception entirely and unwinds
// silently.
//
// before_init is split out from setup because a before_init abort skips
// everything else but after_term (spec.md §8 scenario 6) — on_init,
// after_init, the script, and before_term never run. Any other setup
// failure (on_init/after_init) still reaches teardown, which makes its
// best-effort attempt at the quit command regardless (spec.md §7).
func (s *Session) runBody(ctx context.Context, script Script) error {
	if err := s.hooks.RunAbortable(hooks.BeforeInit, s, ctx); err != nil {
		s.hooks.Run(hooks.AfterTerm, s, ctx)
		return err
	}

	setupErr := s.setup(ctx)
	var scriptErr error
	if setupErr == nil {
		scriptErr = script(s)
		if scriptErr != nil && !errors.Is(scriptErr, ErrQuitNow) {
			if s.hooks.RunUntilHandled(hooks.OnException, s, scriptErr) {
				scriptErr = nil
			}
		}
	}

	teardownErr := s.teardown(ctx)
	if setupErr != nil {
		return setupErr
	}
	if scriptErr != nil {
		return scriptErr
	}
	return teardownErr
}

// setup runs setup_prompt unless a dialect's on_init hook claims the step
// for itself (spec.md §4.9) — the device dialect uses this to replace
// prompt detection with menu parsing instead of waiting for a shell prompt
// that will never appear — then brackets it with after_init. before_init is
// run by runBody before setup is called; see runBody's comment.
func (s *Session) setup(ctx context.Context) error {
	var initErr error
	if !s.hooks.RunUntilHandled(hooks.OnInit, s, ctx, &initErr) {
		initErr = s.setupPrompt(ctx)
	}

	afterErr := s.hooks.RunAbortable(hooks.AfterInit, s, ctx)
	if initErr != nil {
		return initErr
	}
	return afterErr
}

// setupPrompt waits for the first prompt to appear within the default
// 30s/30s bounds (spec.md §4.8 step 5a). A prompt that never appears
// surfaces as the wait's ErrSilenceTimeout or ErrCommandTimeout;
// ErrFailedToSetPrompt is returned only when the wait ends unmatched
// without an error.
func (s *Session) setupPrompt(ctx context.Context) error {
	matched, err := s.waitForPrompt(ctx, 30*time.Second, 30*time.Second, true)
	if err != nil {
		return err
	}
	if !matched {
		return ErrFailedToSetPrompt
	}
	return nil
}

// teardown sends the configured quit command and waits up to one second for
// the shell to react, ignoring any timeout (spec.md §4.8 step 5c) — by the
// time this runs the session is exiting regardless of whether the remote
// shell cooperates. before_term/after_term bracket it so a dialect can run
// cleanup of its own (e.g. exiting a nested interpreter first); after_term
// still runs even if before_term aborts, since it is the one hook that
// always fires once a session has started (spec.md §8 scenario 6).
func (s *Session) teardown(ctx context.Context) error {
	beforeErr := s.hooks.RunAbortable(hooks.BeforeTerm, s, ctx)
	if beforeErr == nil {
		// A fresh capture scope keeps the prompt left by the last command
		// from ending the wait before the quit command has been written.
		s.mu.Lock()
		opts := s.options()
		s.stack.push(&s.current)
		s.queue.enqueue([]byte(opts.Quit+s.lineEnding), opts.UnbufferedInput)
		s.mu.Unlock()

		_, _ = s.waitForPrompt(ctx, 0, time.Second, false)

		s.mu.Lock()
		s.stack.popMerge(&s.current)
		s.mu.Unlock()
	}

	afterErr := s.hooks.RunAbortable(hooks.AfterTerm, s, ctx)
	if beforeErr != nil {
		return beforeErr
	}
	return afterErr
}
