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
	"time"

	"github.com/thyth-tools/commando/transport"
)

// onBytes is the output assembler (spec.md §4.2): it normalizes the raw
// chunk, appends it to the logical buffers, advances last_output_time,
// clears an outstanding echo-wait, and runs the registered monitor.
func (s *Session) onBytes(kind transport.Kind, data []byte) {
	normalized := normalizeNewlines(stripControl(data))

	s.mu.Lock()
	var prefix []byte
	if kind == transport.Stdout {
		if start, _, ok := s.prompt.findRightmost(normalized); ok {
			prefix = normalized[:start]
		} else {
			prefix = normalized
		}
		s.current.stdout += string(prefix)
		s.current.combined += string(normalized)
	} else {
		prefix = normalized
		s.current.stderr += string(normalized)
		s.current.combined += string(normalized)
	}

	s.lastOutputTime = time.Now()
	if len(s.waitingForEchoOf) > 0 && bytes.Contains(normalized, s.waitingForEchoOf) {
		s.waitingForEchoOf = nil
	}
	monitor := s.monitor
	mode := s.options().UnbufferedInput
	s.mu.Unlock()

	if monitor != nil {
		if reply := monitor(prefix, kind); reply != "" {
			s.mu.Lock()
			s.queue.enqueue([]byte(reply+s.lineEnding), mode)
			s.mu.Unlock()
		}
	}
}

// installMonitor sets (or clears, with nil) the active output monitor.
func (s *Session) installMonitor(m Monitor) {
	s.mu.Lock()
	s.monitor = m
	s.mu.Unlock()
}
