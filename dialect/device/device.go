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

// Package device is an extension dialect (spec.md §9), not core: it
// layers a menu-driven console — one that greets a connection with a
// numbered text menu rather than a shell prompt, and whose real prompt
// only appears after an entry is selected — onto the core session via
// the on_init/on_exception hook seam dialect/bash never needed.
package device

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/thyth-tools/commando/hooks"
	"github.com/thyth-tools/commando/session"
)

// RestartNow is raised by user script code to request that teardown
// reboot the device instead of sending its configured quit command. The
// on_exception hook installed by NewRegistry catches it, swaps the quit
// command, and reports the exception handled (spec.md §9).
var RestartNow = errors.New("device: restart now")

// ErrShellNotOffered is returned by the on_init menu-parsing step when no
// menu entry's label matches the configured shell label.
var ErrShellNotOffered = errors.New("device: no menu entry matches the configured shell label")

// menuEntryPattern matches one numbered menu line, e.g. "8) Shell".
var menuEntryPattern = regexp.MustCompile(`(?m)^\s*(\d+)\)\s*(.+?)\s*$`)

// menuPrompt matches the trailing "Enter an option:"-style line a numbered
// menu ends on, whatever the exact wording.
var menuPrompt = regexp.MustCompile(`(?i)option\s*[:#][ \t]*$`)

// shellPrompt matches the device's real prompt once inside the shell:
// "[2.7.2][admin@firewall.example]/root:".
var shellPrompt = regexp.MustCompile(`\[([^\]]+)\]\[([^@\]]+)@([^\]]+)\]([^:]*):[ \t]*$`)

// pfSensePrompt is the nested PHP interpreter's own prompt, entered and
// exited via temporary_prompt (spec.md §9).
const pfSensePrompt = "pfSense shell:"

// Info is what on_init extracts out of the device's real shell prompt.
type Info struct {
	Version string
	User    string
	Host    string
}

// Config parameterizes the menu-driven setup hook.
type Config struct {
	// ShellLabel is matched (case-insensitively, substring) against each
	// menu entry's label to find the one that drops into a shell.
	ShellLabel string
}

// NewRegistry builds a hooks.Registry wired with the device dialect's
// on_init (menu selection, prompt derivation) and on_exception (RestartNow
// handling) callbacks, composed over parent if non-nil.
func NewRegistry(cfg Config, parent *hooks.Registry) *hooks.Registry {
	reg := hooks.NewRegistry(parent)
	reg.On(hooks.OnInit, onInit(cfg))
	reg.On(hooks.OnException, onException)
	return reg
}

// onInit returns the on_init callback: wait for the menu, select the
// configured shell entry, derive and install the real prompt, then
// reassert PS1 so the prompt form survives later `cd`s (spec.md §9).
func onInit(cfg Config) hooks.Func {
	return func(sess interface{}, args ...interface{}) hooks.Result {
		s := sess.(*session.Session)
		ctx := args[0].(context.Context)
		errOut := args[1].(*error)

		*errOut = runInit(ctx, s, cfg)
		return hooks.Break
	}
}

func runInit(ctx context.Context, s *session.Session, cfg Config) error {
	if _, err := s.WaitFor(ctx, menuPrompt, 0, 30*time.Second); err != nil {
		return fmt.Errorf("device: waiting for menu: %w", err)
	}

	option, err := selectMenuEntry(s.CombinedOutput(), cfg.ShellLabel)
	if err != nil {
		return err
	}
	s.Send(option)

	if _, err := s.WaitFor(ctx, shellPrompt, 0, 30*time.Second); err != nil {
		return fmt.Errorf("device: waiting for shell prompt: %w", err)
	}

	info, literal, err := parseShellPrompt(s.CombinedOutput())
	if err != nil {
		return err
	}
	s.SetPromptPattern(shellPrompt)

	ps1 := fmt.Sprintf("PS1='[%s][%s@%s]$PWD:'", info.Version, info.User, info.Host)
	if _, err := s.Exec(ctx, ps1); err != nil {
		return fmt.Errorf("device: reasserting PS1 (derived prompt %q): %w", literal, err)
	}
	return nil
}

// selectMenuEntry scans combined for numbered menu lines and returns the
// option number whose label contains label, case-insensitively.
func selectMenuEntry(combined, label string) (string, error) {
	want := strings.ToLower(strings.TrimSpace(label))
	for _, m := range menuEntryPattern.FindAllStringSubmatch(combined, -1) {
		if strings.Contains(strings.ToLower(m[2]), want) {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrShellNotOffered, label)
}

// parseShellPrompt extracts version/user/host from the rightmost match of
// shellPrompt in combined, returning the matched literal text too.
func parseShellPrompt(combined string) (Info, string, error) {
	matches := shellPrompt.FindAllStringSubmatch(combined, -1)
	if len(matches) == 0 {
		return Info{}, "", errors.New("device: shell prompt never appeared in output")
	}
	m := matches[len(matches)-1]
	return Info{Version: m[1], User: m[2], Host: m[3]}, m[0], nil
}

// onException catches RestartNow and swaps the teardown quit command to a
// reboot, per spec.md §9.
func onException(sess interface{}, args ...interface{}) hooks.Result {
	s := sess.(*session.Session)
	if len(args) == 0 {
		return hooks.Continue
	}
	err, _ := args[0].(error)
	if err == nil || !errors.Is(err, RestartNow) {
		return hooks.Continue
	}
	s.ChangeQuit("/sbin/reboot")
	return hooks.Break
}

// RunPHP enters the device's nested PHP interpreter inside a
// temporary_prompt("pfSense shell:") scope, runs body, then exits back to
// the device shell's own prompt with a final "exit" (spec.md §9). The
// "exit" command is issued only once entry succeeded — sending it to a
// shell that never entered the interpreter would be mistaken for a
// logout — and it runs after the scope closes, so it waits on the
// restored outer prompt rather than the one it just left.
func RunPHP(ctx context.Context, s *session.Session, enterCommand string, body func() error) error {
	entered := false
	bodyErr := s.TemporaryPrompt(pfSensePrompt, func() error {
		if _, err := s.Exec(ctx, enterCommand); err != nil {
			return fmt.Errorf("device: entering PHP interpreter: %w", err)
		}
		entered = true
		return body()
	})
	if !entered {
		return bodyErr
	}
	if _, err := s.Exec(ctx, "exit"); err != nil && bodyErr == nil {
		bodyErr = fmt.Errorf("device: exiting PHP interpreter: %w", err)
	}
	return bodyErr
}
