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

// triple is the (stdout, stderr, combined) capture scope used by the
// buffer stack (spec.md §4.3). Plain strings rather than strings.Builder:
// triples are copied by value when pushed/popped, which strings.Builder
// does not tolerate once written to.
type triple struct {
	stdout, stderr, combined string
}

// bufferStack is a LIFO of triples. push resets the live buffers to empty
// and remembers the previous contents; popMerge concatenates history in
// front of whatever was captured since the push; popDiscard throws the
// captured content away and restores the previous contents verbatim. Every
// mutation is made under the session's single lock by the caller.
type bufferStack struct {
	stack []triple
}

// push saves the current buffers and clears them, returning the cleared
// triple's address so the caller can start writing into it.
func (s *bufferStack) push(current *triple) {
	saved := *current
	s.stack = append(s.stack, saved)
	*current = triple{}
}

// popMerge restores the most recently pushed triple with the current
// (post-push) contents appended after it — "history-then-current"
// (spec.md §4.3) — so the visible transcript reads as if the push never
// happened.
func (s *bufferStack) popMerge(current *triple) {
	n := len(s.stack) - 1
	saved := s.stack[n]
	s.stack = s.stack[:n]

	saved.stdout += current.stdout
	saved.stderr += current.stderr
	saved.combined += current.combined
	*current = saved
}

// popDiscard restores the most recently pushed triple verbatim, throwing
// away whatever was captured since the matching push.
func (s *bufferStack) popDiscard(current *triple) {
	n := len(s.stack) - 1
	saved := s.stack[n]
	s.stack = s.stack[:n]
	*current = saved
}

func (s *bufferStack) depth() int { return len(s.stack) }
