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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/hooks"
	"github.com/thyth-tools/commando/transport"
	"github.com/thyth-tools/commando/transport/sshpty"
	"github.com/thyth-tools/commando/transporttest"
)

const testPrompt = "CMDPROMPT>"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// echoResponder simulates a shell that answers "echo <anything>" with its
// argument and "echo $?" with whatever exitCode currently holds, always
// followed by the prompt.
func echoResponder(exitCode *int32) transporttest.Responder {
	return func(line []byte) (stdout, stderr []byte) {
		cmd := strings.TrimRight(string(line), "\r\n")
		switch {
		case cmd == "echo $?":
			return []byte(strconv.Itoa(int(atomic.LoadInt32(exitCode))) + "\n" + testPrompt), nil
		case strings.HasPrefix(cmd, "echo "):
			return []byte(strings.TrimPrefix(cmd, "echo ") + "\n" + testPrompt), nil
		case cmd == "false":
			atomic.StoreInt32(exitCode, 1)
			return []byte(testPrompt), nil
		default:
			return nil, nil // unrecognized command (or bare newline nudge): no reply, simulating a hang
		}
	}
}

func newTestSession(t *testing.T, opts *config.Options, respond transporttest.Responder) (*Session, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New("welcome\n"+testPrompt, respond)
	s := newSession(fake, opts, hooks.NewRegistry(nil), defaultGetExitCode, discardLogger())
	s.transport.RegisterStdout(func(data []byte) { s.onBytes(transport.Stdout, data) })
	if err := s.transport.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return s, fake
}

func mustOptions(t *testing.T, opts ...config.Option) *config.Options {
	t.Helper()
	base := append([]config.Option{
		config.WithPrompt(testPrompt),
		config.WithTransportSSH(sshpty.Config{User: "test"}),
	}, opts...)
	o, err := config.New(base...)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return o
}

func TestExecBasicRoundTrip(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	s, _ := newTestSession(t, opts, echoResponder(exitCode))

	ctx := context.Background()
	if err := s.setupPrompt(ctx); err != nil {
		t.Fatalf("setupPrompt: %v", err)
	}

	out, err := s.Exec(ctx, "echo hi")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got := strings.TrimSpace(out); got != "hi" {
		t.Fatalf("Exec output = %q, want %q", got, "hi")
	}
}

func TestExecRetrieveExitCodeRaisesOnNonZero(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t, config.WithOnNonZeroExitCode(config.Raise))
	s, _ := newTestSession(t, opts, echoResponder(exitCode))

	ctx := context.Background()
	if err := s.setupPrompt(ctx); err != nil {
		t.Fatalf("setupPrompt: %v", err)
	}

	_, err := s.Exec(ctx, "false", WithRetrieveExitCode(true))
	if err == nil {
		t.Fatalf("expected NonZeroExitCodeError, got nil")
	}
	var nz *NonZeroExitCodeError
	if !errors.As(err, &nz) {
		t.Fatalf("expected *NonZeroExitCodeError, got %T: %v", err, err)
	}
	if nz.Code != 1 {
		t.Fatalf("NonZeroExitCodeError.Code = %d, want 1", nz.Code)
	}
}

func TestExecForCodeAndIgnoreCode(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	s, _ := newTestSession(t, opts, echoResponder(exitCode))

	ctx := context.Background()
	if err := s.setupPrompt(ctx); err != nil {
		t.Fatalf("setupPrompt: %v", err)
	}

	if _, err := s.ExecIgnoreCode(ctx, "false"); err != nil {
		t.Fatalf("ExecIgnoreCode: %v", err)
	}
	code, err := s.ExecForCode(ctx, "echo noop")
	if err != nil {
		t.Fatalf("ExecForCode: %v", err)
	}
	if code != 1 {
		t.Fatalf("ExecForCode = %d, want 1 (sticky from prior false)", code)
	}
}

func TestExecSilenceTimeout(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	s, _ := newTestSession(t, opts, echoResponder(exitCode))

	ctx := context.Background()
	if err := s.setupPrompt(ctx); err != nil {
		t.Fatalf("setupPrompt: %v", err)
	}

	_, err := s.Exec(ctx, "sleep-forever",
		WithExecSilenceTimeout(15*time.Millisecond),
		WithExecCommandTimeout(0),
	)
	if !errors.Is(err, ErrSilenceTimeout) {
		t.Fatalf("Exec error = %v, want ErrSilenceTimeout", err)
	}
}

func TestExecCommandTimeout(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	s, _ := newTestSession(t, opts, echoResponder(exitCode))

	ctx := context.Background()
	if err := s.setupPrompt(ctx); err != nil {
		t.Fatalf("setupPrompt: %v", err)
	}

	_, err := s.Exec(ctx, "sleep-forever",
		WithExecSilenceTimeout(0),
		WithExecCommandTimeout(20*time.Millisecond),
	)
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("Exec error = %v, want ErrCommandTimeout", err)
	}
}

func TestRunQuitNowUnwindsSilently(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	fake := transporttest.New("welcome\n"+testPrompt, echoResponder(exitCode))
	s := newSession(fake, opts, hooks.NewRegistry(nil), defaultGetExitCode, discardLogger())

	err := s.Run(context.Background(), func(s *Session) error {
		return ErrQuitNow
	})
	if err != nil {
		t.Fatalf("Run with QuitNow script = %v, want nil", err)
	}
	if s.IsRunning() {
		t.Fatalf("session still reports running after Run returned")
	}
}

func TestRunPropagatesUnhandledException(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	fake := transporttest.New("welcome\n"+testPrompt, echoResponder(exitCode))
	s := newSession(fake, opts, hooks.NewRegistry(nil), defaultGetExitCode, discardLogger())

	boom := errors.New("boom")
	err := s.Run(context.Background(), func(s *Session) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
}

func TestRunExceptionHookCanHandle(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	reg := hooks.NewRegistry(nil)
	handled := false
	reg.On(hooks.OnException, func(session interface{}, args ...interface{}) hooks.Result {
		handled = true
		return hooks.Break
	})
	fake := transporttest.New("welcome\n"+testPrompt, echoResponder(exitCode))
	s := newSession(fake, opts, reg, defaultGetExitCode, discardLogger())

	boom := errors.New("boom")
	err := s.Run(context.Background(), func(s *Session) error {
		return boom
	})
	if err != nil {
		t.Fatalf("Run error = %v, want nil (handled)", err)
	}
	if !handled {
		t.Fatalf("on_exception hook was never invoked")
	}
}

// TestRunHookOrderOnScriptException exercises spec.md §8 scenario 5: a
// script that raises after before_init runs before_init, after_init,
// before_term, after_term in order and reports the exception via
// on_exception.
func TestRunHookOrderOnScriptException(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	reg := hooks.NewRegistry(nil)

	var order []string
	record := func(name string) hooks.Func {
		return func(session interface{}, args ...interface{}) hooks.Result {
			order = append(order, name)
			return hooks.Continue
		}
	}
	reg.On(hooks.BeforeInit, record("before_init"))
	reg.On(hooks.AfterInit, record("after_init"))
	reg.On(hooks.BeforeTerm, record("before_term"))
	reg.On(hooks.AfterTerm, record("after_term"))
	reg.On(hooks.OnException, func(session interface{}, args ...interface{}) hooks.Result {
		order = append(order, "on_exception")
		return hooks.Break
	})

	fake := transporttest.New("welcome\n"+testPrompt, echoResponder(exitCode))
	s := newSession(fake, opts, reg, defaultGetExitCode, discardLogger())

	boom := errors.New("boom")
	err := s.Run(context.Background(), func(s *Session) error {
		return boom
	})
	if err != nil {
		t.Fatalf("Run error = %v, want nil (handled)", err)
	}

	want := []string{"before_init", "after_init", "on_exception", "before_term", "after_term"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", order, want)
		}
	}
}

// TestRunHookOrderOnBeforeInitAbort exercises spec.md §8 scenario 6: a
// script that raises inside before_init runs only before_init and
// after_term, never the user block, after_init, or before_term.
func TestRunHookOrderOnBeforeInitAbort(t *testing.T) {
	exitCode := new(int32)
	opts := mustOptions(t)
	reg := hooks.NewRegistry(nil)

	var order []string
	boom := errors.New("boom")
	reg.On(hooks.BeforeInit, func(session interface{}, args ...interface{}) hooks.Result {
		order = append(order, "before_init")
		errOut := args[1].(*error)
		*errOut = boom
		return hooks.Break
	})
	reg.On(hooks.AfterInit, func(session interface{}, args ...interface{}) hooks.Result {
		order = append(order, "after_init")
		return hooks.Continue
	})
	reg.On(hooks.BeforeTerm, func(session interface{}, args ...interface{}) hooks.Result {
		order = append(order, "before_term")
		return hooks.Continue
	})
	reg.On(hooks.AfterTerm, func(session interface{}, args ...interface{}) hooks.Result {
		order = append(order, "after_term")
		return hooks.Continue
	})

	scriptRan := false
	fake := transporttest.New("welcome\n"+testPrompt, echoResponder(exitCode))
	s := newSession(fake, opts, reg, defaultGetExitCode, discardLogger())

	err := s.Run(context.Background(), func(s *Session) error {
		scriptRan = true
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if scriptRan {
		t.Fatalf("user script ran despite before_init aborting")
	}

	want := []string{"before_init", "after_term"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", order, want)
		}
	}
}

func TestBufferStackPushPopMerge(t *testing.T) {
	var stack bufferStack
	current := triple{stdout: "a", stderr: "x", combined: "a"}
	stack.push(&current)
	if current != (triple{}) {
		t.Fatalf("push did not clear current")
	}
	current.stdout = "b"
	current.combined = "b"
	stack.popMerge(&current)
	if current.stdout != "ab" || current.combined != "ab" {
		t.Fatalf("popMerge = %+v, want stdout/combined = ab", current)
	}
	if stack.depth() != 0 {
		t.Fatalf("depth = %d, want 0", stack.depth())
	}
}

func TestBufferStackPushPopDiscard(t *testing.T) {
	var stack bufferStack
	current := triple{stdout: "a", combined: "a"}
	stack.push(&current)
	current.stdout = "thrown away"
	stack.popDiscard(&current)
	if current.stdout != "a" {
		t.Fatalf("popDiscard = %+v, want stdout = a", current)
	}
}

func TestSanitizePromptFallsBackWhenEmpty(t *testing.T) {
	if got := sanitizePrompt(""); got != "~~#" {
		t.Fatalf("sanitizePrompt of empty input = %q, want fallback ~~#", got)
	}
}

func TestStripControlRemovesCursorMovement(t *testing.T) {
	in := []byte("hi\x1b[2Athere")
	out := stripControl(in)
	if bytes.Contains(out, []byte("\x1b")) {
		t.Fatalf("stripControl left an escape byte in %q", out)
	}
}
