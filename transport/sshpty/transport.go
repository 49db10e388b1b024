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

// Package sshpty implements transport.Transport over an SSH channel with a
// requested pseudo-terminal (or a plain exec channel, per ShellMode).
package sshpty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/thyth-tools/commando/transport"
)

// ShellMode selects what the transport asks the remote end to run once the
// channel (and optional PTY) are set up.
type ShellMode string

const (
	// ShellLogin requests a PTY and starts the user's default login shell.
	ShellLogin ShellMode = ":shell"
	// ShellPTYOnly requests a PTY but starts no remote process.
	ShellPTYOnly ShellMode = ":none"
	// ShellNoPTY skips the PTY request and starts the default login shell.
	ShellNoPTY ShellMode = ":no_pty"
)

// Config carries the SSH-specific fields of the option set (spec.md §6).
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Shell                 ShellMode // ShellLogin/ShellPTYOnly/ShellNoPTY, or an explicit executable path
	ConnectTimeout        time.Duration
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	ExtraAuth             []ssh.AuthMethod
	TermWidth, TermHeight int
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Transport drives a shell over an SSH channel.
type Transport struct {
	cfg Config

	mu     sync.Mutex
	active bool

	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	stdoutSink transport.StdoutSink
	stderrSink transport.StderrSink
}

// New constructs an SSH+PTY transport. User must be non-empty; validation
// of the full option set happens in package config before this is built.
func New(cfg Config) *Transport {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Shell == "" {
		cfg.Shell = ShellLogin
	}
	if cfg.TermWidth == 0 {
		cfg.TermWidth = 80
	}
	if cfg.TermHeight == 0 {
		cfg.TermHeight = 40
	}
	return &Transport{cfg: cfg}
}

var errNoSession = errors.New("sshpty: not connected")

func (t *Transport) Connect(ctx context.Context) error {
	hostKeyCallback, err := knownHostsCallback(t.cfg.KnownHostsPath, t.cfg.InsecureIgnoreHostKey)
	if err != nil {
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}

	clientConfig := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            authMethods(t.cfg.Password, t.cfg.ExtraAuth),
		HostKeyCallback: hostKeyCallback,
		Timeout:         t.cfg.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: t.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.addr())
	if err != nil {
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.cfg.addr(), clientConfig)
	if err != nil {
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}

	if t.cfg.Shell != ShellNoPTY {
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty("xterm", t.cfg.TermHeight, t.cfg.TermWidth, modes); err != nil {
			_ = session.Close()
			_ = client.Close()
			return &transport.ConnectError{Transport: "sshpty", Err: fmt.Errorf("pty request: %w", err)}
		}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return &transport.ConnectError{Transport: "sshpty", Err: err}
	}

	switch t.cfg.Shell {
	case ShellLogin, ShellNoPTY:
		err = session.Shell()
	case ShellPTYOnly:
		err = nil // PTY only, nothing to start
	default:
		err = session.Start(string(t.cfg.Shell)) // explicit executable path
	}
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return &transport.ConnectError{Transport: "sshpty", Err: fmt.Errorf("start shell: %w", err)}
	}

	t.mu.Lock()
	t.client, t.session, t.stdin = client, session, stdin
	t.active = true
	t.mu.Unlock()

	go t.pump(stdout, func(p []byte) {
		t.mu.Lock()
		sink := t.stdoutSink
		t.mu.Unlock()
		if sink != nil {
			sink(p)
		}
	})
	go t.pump(stderr, func(p []byte) {
		t.mu.Lock()
		sink := t.stderrSink
		t.mu.Unlock()
		if sink != nil {
			sink(p)
		}
	})
	go func() {
		_ = session.Wait()
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
	}()

	return nil
}

// pump reads from r in small chunks and forwards each non-empty read to
// deliver, stopping (without error) on EOF or any read error.
func (t *Transport) pump(r io.Reader, deliver func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			deliver(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	session, client := t.session, t.client
	t.active = false
	t.mu.Unlock()
	var err error
	if session != nil {
		err = session.Close()
	}
	if client != nil {
		if cerr := client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (t *Transport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	stdin := t.stdin
	t.mu.Unlock()
	if stdin == nil {
		return errNoSession
	}
	_, err := stdin.Write(data)
	return err
}

func (t *Transport) RegisterStdout(sink transport.StdoutSink) {
	t.mu.Lock()
	t.stdoutSink = sink
	t.mu.Unlock()
}

func (t *Transport) RegisterStderr(sink transport.StderrSink) {
	t.mu.Lock()
	t.stderrSink = sink
	t.mu.Unlock()
}

// IOStep steps the reactor: the transport's own delivery runs on background
// goroutines (pump), so a step here is simply a short, bounded yield that
// lets the body observe freshly delivered bytes promptly.
func (t *Transport) IOStep(body func() bool) {
	for {
		time.Sleep(2 * time.Millisecond)
		if !body() {
			return
		}
	}
}
