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
	"regexp"
	"strings"
	"sync"
)

// promptReplacer substitutes characters that would otherwise need escaping
// (or that regexp metacharacter collisions make unsafe) out of a raw prompt
// string before it is compiled, per spec.md §4.4.
var promptReplacer = strings.NewReplacer(
	"!", "_",
	"$", "_",
	`\`, "_",
	"/", "_",
	`"`, "_",
	"'", "_",
)

// sanitizePrompt applies the character substitutions of spec.md §4.4 and
// falls back to the default prompt if the result is empty.
func sanitizePrompt(raw string) string {
	s := promptReplacer.Replace(raw)
	if s == "" {
		return "~~#"
	}
	return s
}

// compilePrompt anchors the sanitized literal prompt at the end of the
// buffer, tolerating trailing spaces/tabs but no other whitespace.
func compilePrompt(raw string) *regexp.Regexp {
	sanitized := sanitizePrompt(raw)
	return regexp.MustCompile(regexp.QuoteMeta(sanitized) + `[ \t]*$`)
}

// promptMatcher holds the currently active prompt pattern and supports a
// scoped temporary override. literal holds the plain text of the active
// prompt when it has one (the common case); it is used to build the
// echo-detection pattern in exec.go and is empty while a caller-supplied
// regexp override (temporaryPattern) is active.
type promptMatcher struct {
	mu      sync.Mutex
	pattern *regexp.Regexp
	literal string
}

func newPromptMatcher(rawPrompt string) *promptMatcher {
	sanitized := sanitizePrompt(rawPrompt)
	return &promptMatcher{pattern: compilePrompt(rawPrompt), literal: sanitized}
}

func (m *promptMatcher) current() *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

func (m *promptMatcher) currentLiteral() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.literal
}

// findRightmost returns the [start,end) byte range of the rightmost match
// of the active pattern in buf, or ok=false if there is none.
func (m *promptMatcher) findRightmost(buf []byte) (start, end int, ok bool) {
	pattern := m.current()
	locs := pattern.FindAllIndex(buf, -1)
	if len(locs) == 0 {
		return 0, 0, false
	}
	last := locs[len(locs)-1]
	return last[0], last[1], true
}

func (m *promptMatcher) matchesTail(buf []byte) bool {
	return m.current().Match(buf)
}

// temporaryLiteral installs a literal-prompt override for the duration of
// fn, restoring the previous pattern on every exit path (return, panic).
// Dialects use this when a sub-shell or nested interpreter temporarily
// expects a different prompt (spec.md §4.4, §9).
func (m *promptMatcher) temporaryLiteral(literal string, fn func() error) error {
	return m.temporary(compilePrompt(literal), literal, fn)
}

// temporaryPattern installs a caller-supplied regex override for the
// duration of fn, restoring the previous pattern on every exit path.
func (m *promptMatcher) temporaryPattern(pattern *regexp.Regexp, fn func() error) error {
	return m.temporary(pattern, "", fn)
}

// setPermanentPattern replaces the active pattern with a caller-supplied
// regex, with no literal text recorded (echo-detection in exec.go falls
// back to its no-literal form). Used when the prompt's tail varies — the
// device dialect's "[version][user@host]<path>:" form changes with every
// `cd` — so a frozen literal would stop matching after the first one.
func (m *promptMatcher) setPermanentPattern(pattern *regexp.Regexp) {
	m.mu.Lock()
	m.pattern, m.literal = pattern, ""
	m.mu.Unlock()
}

// setPermanent replaces the active pattern with a literal prompt and no
// restore recorded — unlike temporary, this sticks, for a dialect that
// derives fixed prompt text during on_init and has no "previous" prompt
// worth returning to.
func (m *promptMatcher) setPermanent(literal string) {
	m.mu.Lock()
	m.pattern, m.literal = compilePrompt(literal), sanitizePrompt(literal)
	m.mu.Unlock()
}

func (m *promptMatcher) temporary(pattern *regexp.Regexp, literal string, fn func() error) error {
	m.mu.Lock()
	previousPattern, previousLiteral := m.pattern, m.literal
	m.pattern, m.literal = pattern, literal
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pattern, m.literal = previousPattern, previousLiteral
		m.mu.Unlock()
	}()

	return fn()
}
