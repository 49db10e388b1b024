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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/transport"
)

// execOptions collects the per-call overrides of spec.md §4.7.
type execOptions struct {
	retrieveExitCode  bool
	onNonZeroExitCode config.NonZeroExitPolicy
	silenceTimeout    *time.Duration
	commandTimeout    *time.Duration
	timeoutError      bool
	getOutput         bool
	commandIsEchoed   bool
	monitor           Monitor
}

// ExecOption overrides one field of the per-call exec options.
type ExecOption func(*execOptions)

func WithRetrieveExitCode(b bool) ExecOption {
	return func(o *execOptions) { o.retrieveExitCode = b }
}

func WithOnNonZeroExitCode(p config.NonZeroExitPolicy) ExecOption {
	return func(o *execOptions) { o.onNonZeroExitCode = p }
}

func WithExecSilenceTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) { o.silenceTimeout = &d }
}

func WithExecCommandTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) { o.commandTimeout = &d }
}

func WithTimeoutError(b bool) ExecOption { return func(o *execOptions) { o.timeoutError = b } }
func WithGetOutput(b bool) ExecOption    { return func(o *execOptions) { o.getOutput = b } }
func WithCommandIsEchoed(b bool) ExecOption {
	return func(o *execOptions) { o.commandIsEchoed = b }
}
func WithMonitor(m Monitor) ExecOption { return func(o *execOptions) { o.monitor = m } }

func (s *Session) resolveExecOptions(opts []ExecOption) execOptions {
	base := s.options()
	eo := execOptions{
		retrieveExitCode:  base.RetrieveExitCode,
		onNonZeroExitCode: base.OnNonZeroExitCode,
		timeoutError:      true,
		getOutput:         true,
		commandIsEchoed:   true,
	}
	for _, apply := range opts {
		apply(&eo)
	}
	return eo
}

func (s *Session) effectiveSilenceTimeout(eo execOptions) time.Duration {
	if eo.silenceTimeout != nil {
		return *eo.silenceTimeout
	}
	return s.options().SilenceTimeout
}

func (s *Session) effectiveCommandTimeout(eo execOptions) time.Duration {
	if eo.commandTimeout != nil {
		return *eo.commandTimeout
	}
	return s.options().CommandTimeout
}

// Exec is the public synchronous command driver (spec.md §4.7).
func (s *Session) Exec(ctx context.Context, command string, opts ...ExecOption) (string, error) {
	eo := s.resolveExecOptions(opts)

	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return "", ErrSessionCompleted
	}
	if !s.running {
		s.mu.Unlock()
		return "", ErrNotRunning
	}
	s.stack.push(&s.current)
	previousMonitor := s.monitor
	s.mu.Unlock()

	monitor := eo.monitor
	if monitor == nil {
		monitor = func([]byte, transport.Kind) string { return "" }
	}
	s.installMonitor(monitor)
	defer s.installMonitor(previousMonitor)

	s.mu.Lock()
	s.queue.enqueue([]byte(command+s.lineEnding), s.options().UnbufferedInput)
	s.mu.Unlock()

	matched, err := s.waitForPrompt(ctx,
		s.effectiveSilenceTimeout(eo),
		s.effectiveCommandTimeout(eo),
		eo.timeoutError)

	if !matched {
		if err != nil {
			s.mu.Lock()
			s.stack.popMerge(&s.current)
			s.mu.Unlock()
			return "", err
		}
		s.mu.Lock()
		s.lastExitCode = ExitTimeout
		output := s.current.combined
		s.stack.popMerge(&s.current)
		s.mu.Unlock()
		return output, nil
	}

	var output string
	if eo.getOutput {
		s.mu.Lock()
		output = s.extractCommandOutput(command, eo.commandIsEchoed)
		s.mu.Unlock()
	}

	var execErr error
	if eo.retrieveExitCode {
		code := s.getExitCode(ctx, s)
		s.mu.Lock()
		s.lastExitCode = code
		s.mu.Unlock()
		if eo.onNonZeroExitCode == config.Raise {
			if v, ok := code.Int(); ok && v != 0 {
				execErr = &NonZeroExitCodeError{Command: command, Code: v}
			}
		}
	}

	s.mu.Lock()
	s.stack.popMerge(&s.current)
	s.mu.Unlock()

	return output, execErr
}

// extractCommandOutput implements spec.md §4.7 step 5. Must be called with
// the session lock held. It slices the combined buffer up to the matched
// prompt, then — unless commandIsEchoed is false — scans line by line,
// discarding lines until one matches the idempotent echo pattern
// ^(prompt\s*)?<command>\s*$, returning everything after that line. If no
// line matches, it returns everything found (spec.md diverges here from
// the source's off-by-one bug: this walks forward until a match, it never
// guesses a wrong partition).
func (s *Session) extractCommandOutput(command string, commandIsEchoed bool) string {
	combined := s.current.combined
	upToPrompt := combined
	if start, _, ok := s.prompt.findRightmost([]byte(combined)); ok {
		upToPrompt = combined[:start]
	}
	if !commandIsEchoed {
		return upToPrompt
	}

	echoPattern := buildEchoPattern(s.prompt.currentLiteral(), command)
	lines := strings.Split(upToPrompt, "\n")
	for i, line := range lines {
		if echoPattern.MatchString(line) {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	s.logger.Warn("exec: command echo not found in output", "command", command)
	return upToPrompt
}

func buildEchoPattern(promptLiteral, command string) *regexp.Regexp {
	quotedCommand := regexp.QuoteMeta(command)
	if promptLiteral == "" {
		return regexp.MustCompile(`^` + quotedCommand + `\s*$`)
	}
	return regexp.MustCompile(`^(?:` + regexp.QuoteMeta(promptLiteral) + `\s*)?` + quotedCommand + `\s*$`)
}

// ExecForCode forces RetrieveExitCode on and returns the parsed integer.
func (s *Session) ExecForCode(ctx context.Context, command string, opts ...ExecOption) (int, error) {
	opts = append(append([]ExecOption{}, opts...), WithRetrieveExitCode(true))
	_, err := s.Exec(ctx, command, opts...)
	code, _ := s.LastExitCode().Int()
	return code, err
}

// ExecIgnoreCode forces RetrieveExitCode off and returns the output string.
func (s *Session) ExecIgnoreCode(ctx context.Context, command string, opts ...ExecOption) (string, error) {
	opts = append(append([]ExecOption{}, opts...), WithRetrieveExitCode(false))
	return s.Exec(ctx, command, opts...)
}

// defaultGetExitCode implements spec.md §4.7's exit-code retrieval: push,
// queue the exit-code-query command, wait up to Options.ExitCodeTimeout
// (1 second when unset), extract the
// query's own output, parse an integer, pop-discard.
func defaultGetExitCode(ctx context.Context, s *Session) ExitCode {
	opts := s.options()
	query := opts.ExitCodeCommand
	if query == "" {
		query = "echo $?"
	}
	timeout := opts.ExitCodeTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	s.mu.Lock()
	s.stack.push(&s.current)
	s.queue.enqueue([]byte(query+s.lineEnding), opts.UnbufferedInput)
	s.mu.Unlock()

	matched, _ := s.waitForPrompt(ctx, 0, timeout, false)
	if !matched {
		s.mu.Lock()
		s.stack.popDiscard(&s.current)
		s.mu.Unlock()
		return ExitTimeout
	}

	s.mu.Lock()
	output := s.extractCommandOutput(query, true)
	s.stack.popDiscard(&s.current)
	s.mu.Unlock()

	trimmed := strings.TrimSpace(output)
	lines := strings.Split(trimmed, "\n")
	trimmed = strings.TrimSpace(lines[len(lines)-1])
	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return ExitUndefined
	}
	return Code(v)
}
