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
	"errors"
	"fmt"
)

// Sentinel errors, spec.md §6.
var (
	// ErrQuitNow unwinds the worker strand silently; caught by the lifecycle
	// runner and never surfaced to the caller of Run.
	ErrQuitNow = errors.New("session: quit now")

	ErrPromptTooLong      = errors.New("session: prompt match exceeded buffer bounds")
	ErrCommandTimeout     = errors.New("session: command timeout")
	ErrSilenceTimeout     = errors.New("session: silence timeout")
	ErrNotRunning         = errors.New("session: not running")
	ErrAlreadyRunning     = errors.New("session: already running")
	ErrSessionCompleted   = errors.New("session: session completed")
	ErrFailedToRequestPTY = errors.New("session: failed to request pty")
	ErrFailedToStartShell = errors.New("session: failed to start shell")
	ErrFailedToSetPrompt  = errors.New("session: failed to set prompt")
)

// NonZeroExitCodeError is raised from Exec when OnNonZeroExitCode is Raise
// and the retrieved exit code was non-zero (and not Undefined/Timeout).
type NonZeroExitCodeError struct {
	Command string
	Code    int
}

func (e *NonZeroExitCodeError) Error() string {
	return fmt.Sprintf("session: command %q exited %d", e.Command, e.Code)
}
