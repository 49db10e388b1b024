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

// Package bash layers file transfer over a plain bash(-ish) session: it is
// an extension, not core (spec.md §9), built entirely on Exec/ExecIgnoreCode
// and never touches the transport directly.
package bash

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/thyth-tools/commando/session"
)

// maxCommandBytes bounds each chained echo command line sent to the
// remote shell, matching spec.md §9's 2048-byte ceiling.
const maxCommandBytes = 2048

// codec names one decoder/encoder pair available on the remote shell.
type codec struct {
	bin     string
	decode  func(sidecar, out string) string
	encode  func(in, sidecar string) string
}

// codecs is tried in order; the first binary `which` reports present wins
// (spec.md §9: "whichever which reports available").
var codecs = []codec{
	{
		bin:    "base64",
		decode: func(sidecar, out string) string { return fmt.Sprintf("base64 -d %s > %s", sidecar, out) },
		encode: func(in, sidecar string) string { return fmt.Sprintf("base64 %s > %s", in, sidecar) },
	},
	{
		bin:    "openssl",
		decode: func(sidecar, out string) string { return fmt.Sprintf("openssl base64 -d -in %s -out %s", sidecar, out) },
		encode: func(in, sidecar string) string { return fmt.Sprintf("openssl base64 -in %s -out %s", in, sidecar) },
	},
	{
		bin: "perl",
		decode: func(sidecar, out string) string {
			return fmt.Sprintf(`perl -MMIME::Base64 -ne 'print decode_base64($_)' %s > %s`, sidecar, out)
		},
		encode: func(in, sidecar string) string {
			return fmt.Sprintf(`perl -MMIME::Base64 -0777 -ne 'print encode_base64($_)' %s > %s`, in, sidecar)
		},
	},
}

// detectCodec asks the remote shell which of the known base64 tools is on
// its PATH and returns the first one found.
func detectCodec(ctx context.Context, s *session.Session) (codec, error) {
	names := make([]string, len(codecs))
	for i, c := range codecs {
		names[i] = c.bin
	}
	probe := make([]string, len(names))
	for i, n := range names {
		probe[i] = fmt.Sprintf("which %s 2>/dev/null", n)
	}
	out, err := s.ExecIgnoreCode(ctx, strings.Join(probe, " || "))
	if err != nil {
		return codec{}, fmt.Errorf("bash: probing for a base64 codec: %w", err)
	}
	found := strings.TrimSpace(out)
	for i, n := range names {
		if strings.Contains(found, n) {
			return codecs[i], nil
		}
	}
	return codec{}, fmt.Errorf("bash: no base64 codec (tried %s) found on remote PATH", strings.Join(names, ", "))
}

// WriteFile base64-encodes data locally, appends it line by line to a
// "<path>.b64" sidecar via chained `echo >>` commands, then decodes the
// sidecar into path on the remote end (spec.md §9).
func WriteFile(ctx context.Context, s *session.Session, path string, data []byte) error {
	sidecar := path + ".b64"
	if _, err := s.ExecIgnoreCode(ctx, fmt.Sprintf("rm -f %s", sidecar)); err != nil {
		return fmt.Errorf("bash: clearing sidecar: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	for _, batch := range chunkIntoCommands(sidecar, encoded) {
		if _, err := s.ExecIgnoreCode(ctx, batch); err != nil {
			return fmt.Errorf("bash: appending sidecar line: %w", err)
		}
	}

	dec, err := detectCodec(ctx, s)
	if err != nil {
		return err
	}
	if _, err := s.ExecIgnoreCode(ctx, dec.decode(sidecar, path)); err != nil {
		return fmt.Errorf("bash: decoding sidecar to %s: %w", path, err)
	}
	_, err = s.ExecIgnoreCode(ctx, fmt.Sprintf("rm -f %s", sidecar))
	return err
}

// ReadFile base64-encodes the remote file into a sidecar, reads the
// sidecar's text back over the session, and decodes it locally.
func ReadFile(ctx context.Context, s *session.Session, path string) ([]byte, error) {
	sidecar := path + ".b64"
	enc, err := detectCodec(ctx, s)
	if err != nil {
		return nil, err
	}
	if _, err := s.ExecIgnoreCode(ctx, enc.encode(path, sidecar)); err != nil {
		return nil, fmt.Errorf("bash: encoding %s to sidecar: %w", path, err)
	}

	out, err := s.ExecIgnoreCode(ctx, fmt.Sprintf("cat %s", sidecar))
	if err != nil {
		return nil, fmt.Errorf("bash: reading sidecar: %w", err)
	}
	if _, err := s.ExecIgnoreCode(ctx, fmt.Sprintf("rm -f %s", sidecar)); err != nil {
		return nil, fmt.Errorf("bash: clearing sidecar: %w", err)
	}

	clean := strings.Join(strings.Fields(out), "")
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("bash: decoding transferred data: %w", err)
	}
	return data, nil
}

// chunkIntoCommands splits base64 text into 76-byte lines (the conventional
// base64 line width) and groups the resulting `echo line >> sidecar`
// commands into &&-chained batches, each kept under maxCommandBytes.
func chunkIntoCommands(sidecar, encoded string) []string {
	const lineWidth = 76

	var lines []string
	for i := 0; i < len(encoded); i += lineWidth {
		end := i + lineWidth
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}

	var batches []string
	var current strings.Builder
	for _, line := range lines {
		stmt := fmt.Sprintf("echo %s >> %s", line, sidecar)
		if current.Len() > 0 && current.Len()+len(" && ")+len(stmt) > maxCommandBytes {
			batches = append(batches, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" && ")
		}
		current.WriteString(stmt)
	}
	if current.Len() > 0 {
		batches = append(batches, current.String())
	}
	return batches
}
