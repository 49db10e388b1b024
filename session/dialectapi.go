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
	"time"
)

// This file is the seam dialects build on when the default bash-prompt
// assumption doesn't fit: a menu-driven device console (dialect/device)
// that must derive its own prompt text from a banner before anything
// resembling Exec can work, or a nested interpreter entered mid-session
// (dialect/device's PHP shell) that temporarily expects a different
// prompt. Everything here is built from the same primitives Exec and the
// lifecycle already use; none of it bypasses the session lock.

// Send queues a line (plus the session's line ending) for the reactor to
// write, exactly as Exec does before it waits for a response. Use WaitFor
// afterwards to block for whatever reply is expected.
func (s *Session) Send(line string) {
	s.mu.Lock()
	s.queue.enqueue([]byte(line+s.lineEnding), s.options().UnbufferedInput)
	s.mu.Unlock()
}

// WaitFor temporarily installs pattern as the active prompt and runs the
// same reactor loop Exec uses until it matches (or times out), restoring
// the previous prompt before returning. Used for matching text that isn't
// the session's normal prompt — a menu's "option:" line, a banner sentinel.
func (s *Session) WaitFor(ctx context.Context, pattern *regexp.Regexp, silenceTimeout, commandTimeout time.Duration) (matched bool, err error) {
	scopeErr := s.prompt.temporaryPattern(pattern, func() error {
		m, e := s.waitForPrompt(ctx, silenceTimeout, commandTimeout, true)
		matched = m
		return e
	})
	return matched, scopeErr
}

// TemporaryPrompt installs a literal prompt override for the duration of
// fn, restoring the previous one on every exit path (spec.md §4.4's
// temporary_prompt, used by the device dialect's nested PHP interpreter).
func (s *Session) TemporaryPrompt(literal string, fn func() error) error {
	return s.prompt.temporaryLiteral(literal, fn)
}

// SetPrompt permanently replaces the active prompt with a literal. A
// dialect's on_init hook can call this once it has derived fixed prompt
// text — unlike TemporaryPrompt this has no matching restore. The device
// dialect uses SetPromptPattern instead, since its prompt carries a path.
func (s *Session) SetPrompt(literal string) {
	s.prompt.setPermanent(literal)
}

// SetPromptPattern permanently replaces the active prompt with a
// caller-supplied regex instead of a literal — for a prompt whose tail
// varies (the device dialect's path-bearing prompt across `cd`s).
func (s *Session) SetPromptPattern(pattern *regexp.Regexp) {
	s.prompt.setPermanentPattern(pattern)
}
