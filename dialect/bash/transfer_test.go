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

package bash

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/hooks"
	"github.com/thyth-tools/commando/session"
	"github.com/thyth-tools/commando/transport/sshpty"
	"github.com/thyth-tools/commando/transporttest"
)

const prompt = "FAKE>"

// remoteFS is a minimal in-memory stand-in for the remote filesystem,
// enough to answer the handful of commands WriteFile/ReadFile issue.
type remoteFS struct {
	files map[string][]byte
}

func (fs *remoteFS) responder() transporttest.Responder {
	return func(line []byte) (stdout, stderr []byte) {
		cmd := strings.TrimRight(string(line), "\r\n")
		reply := func(body string) []byte { return []byte(body + prompt) }

		switch {
		case strings.HasPrefix(cmd, "which base64"):
			return reply("/usr/bin/base64\n"), nil
		case strings.HasPrefix(cmd, "rm -f "):
			delete(fs.files, strings.TrimPrefix(cmd, "rm -f "))
			return reply(""), nil
		case strings.HasPrefix(cmd, "echo ") && strings.Contains(cmd, " >> "):
			fs.appendEcho(cmd)
			return reply(""), nil
		case strings.HasPrefix(cmd, "base64 -d "):
			fs.decode(cmd)
			return reply(""), nil
		case strings.HasPrefix(cmd, "base64 ") && !strings.Contains(cmd, "-d"):
			fs.encode(cmd)
			return reply(""), nil
		case strings.HasPrefix(cmd, "cat "):
			data := fs.files[strings.TrimPrefix(cmd, "cat ")]
			return reply(string(data) + "\n"), nil
		default:
			return reply(""), nil
		}
	}
}

// appendEcho parses `echo <b64line> >> <sidecar> [&& echo ... >> <sidecar>]*`.
func (fs *remoteFS) appendEcho(cmd string) {
	for _, stmt := range strings.Split(cmd, " && ") {
		stmt = strings.TrimPrefix(stmt, "echo ")
		parts := strings.SplitN(stmt, " >> ", 2)
		if len(parts) != 2 {
			continue
		}
		line, sidecar := parts[0], parts[1]
		if fs.files == nil {
			fs.files = map[string][]byte{}
		}
		fs.files[sidecar] = append(fs.files[sidecar], []byte(line+"\n")...)
	}
}

func (fs *remoteFS) decode(cmd string) {
	fields := strings.Fields(cmd)
	sidecar, out := fields[2], fields[4]
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(fs.files[sidecar]), "\n", ""))
	if err != nil {
		return
	}
	fs.files[out] = decoded
}

func (fs *remoteFS) encode(cmd string) {
	fields := strings.Fields(cmd)
	in, out := fields[1], fields[3]
	fs.files[out] = []byte(base64.StdEncoding.EncodeToString(fs.files[in]))
}

func newTestSession(t *testing.T, fs *remoteFS) *session.Session {
	t.Helper()
	opts, err := config.New(
		config.WithPrompt(prompt),
		config.WithTransportSSH(sshpty.Config{User: "test"}),
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	fake := transporttest.New("welcome\n"+prompt, fs.responder())
	s, err := session.NewWithTransport(fake, opts, hooks.NewRegistry(nil), nil, nil)
	if err != nil {
		t.Fatalf("NewWithTransport: %v", err)
	}
	return s
}

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	fs := &remoteFS{files: map[string][]byte{}}
	s := newTestSession(t, fs)

	payload := make([]byte, 16*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	fs.files["/tmp/target"] = nil // remote file WriteFile will create

	var roundTripped []byte
	runErr := s.Run(context.Background(), func(s *session.Session) error {
		ctx := context.Background()
		if err := WriteFile(ctx, s, "/tmp/target", payload); err != nil {
			return err
		}
		var err error
		roundTripped, err = ReadFile(ctx, s, "/tmp/target")
		return err
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}

	got := fs.files["/tmp/target"]
	if !bytesEqual(got, payload) {
		t.Fatalf("remote file after WriteFile has %d bytes, want %d matching payload", len(got), len(payload))
	}
	if !bytesEqual(roundTripped, payload) {
		t.Fatalf("ReadFile returned %d bytes, want %d matching original payload", len(roundTripped), len(payload))
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
