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

// stripControl implements spec.md §4.2 step 1: CSI cursor-movement commands
// become a newline, other CSI/charset/string-terminator sequences are
// deleted, non-printable bytes other than LF/CR/TAB are dropped, and TAB
// becomes a single space. This is deliberately not a terminal emulator (no
// cursor/attribute state is tracked) — full emulation is out of scope
// (spec.md §1 Non-goals); this only keeps escape sequences from corrupting
// prompt matching and command echo.
func stripControl(in []byte) []byte {
	out := make([]byte, 0, len(in))
	i := 0
	for i < len(in) {
		b := in[i]
		switch {
		case b == 0x1b && i+1 < len(in) && in[i+1] == '[':
			// CSI sequence: ESC '[' params... final-byte in 0x40-0x7e
			j := i + 2
			for j < len(in) && (in[j] < 0x40 || in[j] > 0x7e) {
				j++
			}
			if j < len(in) {
				final := in[j]
				if isCursorMovement(final) {
					out = append(out, '\n')
				}
				i = j + 1
			} else {
				i = len(in) // unterminated sequence, drop the remainder
			}
		case b == 0x1b && i+1 < len(in) && (in[i+1] == ']' || in[i+1] == 'P' || in[i+1] == '^' || in[i+1] == '_'):
			// OSC / DCS / PM / APC: runs until ESC \ (string terminator) or BEL
			j := i + 2
			for j < len(in) && in[j] != 0x07 && !(in[j] == 0x1b && j+1 < len(in) && in[j+1] == '\\') {
				j++
			}
			if j < len(in) && in[j] == 0x07 {
				i = j + 1
			} else if j+1 < len(in) {
				i = j + 2
			} else {
				i = len(in)
			}
		case b == 0x1b && i+1 < len(in):
			// charset-selection or other two-byte escape: ESC x
			i += 2
		case b == '\t':
			out = append(out, ' ')
			i++
		case b == '\n' || b == '\r':
			out = append(out, b)
			i++
		case b < 0x20 || b == 0x7f:
			i++ // drop other non-printable bytes
		default:
			out = append(out, b)
			i++
		}
	}
	return out
}

// isCursorMovement reports whether a CSI final byte denotes a cursor
// movement command (spec.md §4.2): CUU/CUD/CUF/CUB/CNL/CPL/CHA/CUP/HVP.
func isCursorMovement(final byte) bool {
	switch final {
	case 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'f':
		return true
	default:
		return false
	}
}

// normalizeNewlines implements spec.md §4.2 step 2: CRLF -> LF, " CR" (a
// space immediately followed by CR) -> removed entirely, remaining CR ->
// removed.
func normalizeNewlines(in []byte) []byte {
	out := make([]byte, 0, len(in))
	i := 0
	for i < len(in) {
		switch {
		case in[i] == '\r' && i+1 < len(in) && in[i+1] == '\n':
			out = append(out, '\n')
			i += 2
		case in[i] == ' ' && i+1 < len(in) && in[i+1] == '\r':
			i += 2
		case in[i] == '\r':
			i++
		default:
			out = append(out, in[i])
			i++
		}
	}
	return out
}
