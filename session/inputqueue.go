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

import "github.com/thyth-tools/commando/config"

// inputQueue is the thread-safe FIFO of byte chunks waiting to be written
// to the transport (spec.md §4.5). Locking is the caller's responsibility
// (the session's single mutex), matching spec.md §5's "single session
// mutex" model — inputQueue itself holds no lock.
type inputQueue struct {
	chunks [][]byte
}

func newInputQueue() *inputQueue { return &inputQueue{} }

// enqueue splits data per mode and appends each resulting chunk. Call only
// while holding the session lock.
func (q *inputQueue) enqueue(data []byte, mode config.UnbufferedInput) {
	if mode == config.InputBuffered {
		q.chunks = append(q.chunks, data)
		return
	}
	for _, b := range data {
		q.chunks = append(q.chunks, []byte{b})
	}
}

// dequeue pops the oldest chunk, if any. Call only while holding the
// session lock.
func (q *inputQueue) dequeue() ([]byte, bool) {
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true
}

func (q *inputQueue) empty() bool { return len(q.chunks) == 0 }
