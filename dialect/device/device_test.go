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

package device

import (
	"context"
	"strings"
	"testing"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/session"
	"github.com/thyth-tools/commando/transport/sshpty"
	"github.com/thyth-tools/commando/transporttest"
)

const shellPromptText = "[2.7.2][admin@firewall.example]/root:"

// menuBanner is what the fake delivers immediately on connect: a numbered
// menu ending on the "Enter an option:" line the on_init hook waits for.
// It must end with no trailing newline, matching how a real console
// leaves the cursor sitting right after the colon.
const menuBanner = "Welcome\n" +
	"1) Logout\n" +
	"2) Assign interfaces\n" +
	"8) Shell\n" +
	"\n" +
	"Enter an option: "

// commandLog records every line the session sends, for assertions about
// teardown's quit command.
type commandLog struct {
	lines []string
}

func (c *commandLog) responder() transporttest.Responder {
	return func(line []byte) (stdout, stderr []byte) {
		cmd := strings.TrimRight(string(line), "\r\n")
		c.lines = append(c.lines, cmd)

		switch {
		case cmd == "8":
			return []byte("\nEntering shell.\n" + shellPromptText), nil
		case strings.HasPrefix(cmd, "PS1="):
			return []byte("\n" + shellPromptText), nil
		case cmd == "pwd":
			return []byte("\n/root\n" + shellPromptText), nil
		case cmd == "php -a":
			return []byte("\n" + pfSensePrompt), nil
		case cmd == "echo hi":
			return []byte("\nhi\n" + pfSensePrompt), nil
		case cmd == "exit":
			return []byte("\n" + shellPromptText), nil
		default:
			return []byte("\n" + shellPromptText), nil
		}
	}
}

func buildSession(t *testing.T, log *commandLog, shellLabel string) *session.Session {
	t.Helper()
	opts, err := config.New(
		config.WithPrompt("unused>"),
		config.WithTransportSSH(sshpty.Config{User: "test"}),
		config.WithQuit("exit"),
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	reg := NewRegistry(Config{ShellLabel: shellLabel}, nil)
	fake := transporttest.New(menuBanner, log.responder())
	s, err := session.NewWithTransport(fake, opts, reg, nil, nil)
	if err != nil {
		t.Fatalf("NewWithTransport: %v", err)
	}
	return s
}

func TestOnInitSelectsMenuAndDerivesPrompt(t *testing.T) {
	log := &commandLog{}
	s := buildSession(t, log, "shell")

	var pwdOutput string
	runErr := s.Run(context.Background(), func(s *session.Session) error {
		ctx := context.Background()
		out, err := s.Exec(ctx, "pwd")
		pwdOutput = out
		return err
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if !strings.Contains(pwdOutput, "/root") {
		t.Fatalf("pwd output = %q, want it to contain /root", pwdOutput)
	}

	found := false
	for _, l := range log.lines {
		if l == "8" {
			found = true
		}
	}
	if !found {
		t.Fatalf("session never selected menu option 8 (lines: %v)", log.lines)
	}
}

func TestOnInitFailsWhenShellLabelMissing(t *testing.T) {
	log := &commandLog{}
	s := buildSession(t, log, "nonexistent-entry")

	runErr := s.Run(context.Background(), func(s *session.Session) error {
		return nil
	})
	if runErr == nil {
		t.Fatalf("Run: want an error when no menu entry matches the shell label")
	}
}

func TestRunPHPEntersAndExitsInterpreter(t *testing.T) {
	log := &commandLog{}
	s := buildSession(t, log, "shell")

	var phpOutput, afterOutput string
	runErr := s.Run(context.Background(), func(s *session.Session) error {
		ctx := context.Background()
		err := RunPHP(ctx, s, "php -a", func() error {
			out, err := s.Exec(ctx, "echo hi")
			phpOutput = out
			return err
		})
		if err != nil {
			return err
		}
		afterOutput, err = s.Exec(ctx, "pwd")
		return err
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if !strings.Contains(phpOutput, "hi") {
		t.Fatalf("php output = %q, want it to contain hi", phpOutput)
	}
	if !strings.Contains(afterOutput, "/root") {
		t.Fatalf("post-php output = %q, want it to contain /root (prompt should be restored)", afterOutput)
	}
}

func TestRestartNowSwapsQuitCommand(t *testing.T) {
	log := &commandLog{}
	s := buildSession(t, log, "shell")

	runErr := s.Run(context.Background(), func(s *session.Session) error {
		return RestartNow
	})
	if runErr != nil {
		t.Fatalf("Run: want RestartNow handled (nil error), got %v", runErr)
	}

	if len(log.lines) == 0 || log.lines[len(log.lines)-1] != "/sbin/reboot" {
		t.Fatalf("teardown's quit command = %v, want last line /sbin/reboot", log.lines)
	}
}
