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
	"runtime"
	"strings"
	"time"

	"github.com/thyth-tools/commando/config"
)

const maxNudges = 3

// waitForPrompt drives one reactor step at a time (via transport.IOStep)
// until the combined buffer matches the active prompt, a silence timeout
// elapses after maxNudges nudges, a command timeout elapses, or ctx is
// cancelled. The nudge count covers the whole wait; it is not reset when
// output arrives between nudges. A cancelled ctx ends the wait the way a
// command timeout does, but the error reported is ctx.Err(), not
// ErrCommandTimeout. Reports matched=true only on a successful prompt match.
func (s *Session) waitForPrompt(ctx context.Context, silenceTimeout, commandTimeout time.Duration, raiseOnTimeout bool) (matched bool, err error) {
	nudgeInterval := time.Duration(0)
	if silenceTimeout > 0 {
		nudgeInterval = silenceTimeout / 3
	}

	var deadline time.Time
	hasDeadline := commandTimeout > 0
	if hasDeadline {
		deadline = time.Now().Add(commandTimeout)
	}

	nudgeCount := 0
	var loopErr error
	succeeded := false

	s.transport.IOStep(func() bool {
		s.mu.Lock()
		combinedMatches := s.prompt.matchesTail([]byte(s.current.combined))
		s.mu.Unlock()
		if combinedMatches {
			succeeded = true
			return false
		}

		runtime.Gosched()

		select {
		case <-ctx.Done():
			if raiseOnTimeout {
				loopErr = ctx.Err()
			}
			return false
		default:
		}

		now := time.Now()
		if nudgeInterval > 0 {
			s.mu.Lock()
			sinceOutput := now.Sub(s.lastOutputTime)
			s.mu.Unlock()
			if sinceOutput > nudgeInterval {
				if nudgeCount >= maxNudges {
					if raiseOnTimeout {
						loopErr = ErrSilenceTimeout
					}
					return false
				}
				nudgeCount++
				s.mu.Lock()
				s.queue.enqueue([]byte(s.lineEnding), s.options().UnbufferedInput)
				s.lastOutputTime = now
				s.mu.Unlock()
			}
		}

		if hasDeadline && now.After(deadline) {
			if raiseOnTimeout {
				loopErr = ErrCommandTimeout
			}
			return false
		}

		s.mu.Lock()
		mode := s.options().UnbufferedInput
		waitingEcho := len(s.waitingForEchoOf) > 0
		var chunk []byte
		var hasChunk bool
		if mode != config.InputEcho || !waitingEcho {
			chunk, hasChunk = s.queue.dequeue()
			if hasChunk && mode == config.InputEcho {
				s.waitingForEchoOf = chunk
			}
		}
		s.mu.Unlock()
		if hasChunk {
			_ = s.transport.Write(chunk) // transport I/O errors surface via Active()/session error slot
		}

		return true
	})

	if succeeded {
		s.finalizePromptMatch()
		return true, nil
	}
	return false, loopErr
}

// finalizePromptMatch implements spec.md §4.6 step 5: ensure the combined
// buffer has a newline before the matched prompt, and that stdout ends
// with a newline.
func (s *Session) finalizePromptMatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if start, _, ok := s.prompt.findRightmost([]byte(s.current.combined)); ok {
		if start > 0 && s.current.combined[start-1] != '\n' {
			s.current.combined = s.current.combined[:start] + "\n" + s.current.combined[start:]
		}
	}
	if s.current.stdout != "" && !strings.HasSuffix(s.current.stdout, "\n") {
		s.current.stdout += "\n"
	}
}
