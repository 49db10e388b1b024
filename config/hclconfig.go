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

package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/thyth-tools/commando/transport/serialport"
	"github.com/thyth-tools/commando/transport/sshpty"
)

// hclFile is the intermediate decode target for a commando HCL config
// file — `--config` on the CLI front end. Split from Options itself so
// durations can be accepted as HCL strings ("30s") and parsed explicitly,
// the way the teacher's own hcl_config.go handles every *_timeout field.
type hclFile struct {
	Prompt            string    `hcl:"prompt,optional"`
	Quit              string    `hcl:"quit,optional"`
	RetrieveExitCode  *bool     `hcl:"retrieve_exit_code,optional"`
	OnNonZeroExitCode string    `hcl:"on_non_zero_exit_code,optional"` // "ignore" | "raise"
	SilenceTimeout    string    `hcl:"silence_timeout,optional"`
	CommandTimeout    string    `hcl:"command_timeout,optional"`
	UnbufferedInput   string    `hcl:"unbuffered_input,optional"` // "none" | "char" | "echo"
	ExitCodeCommand   string    `hcl:"exit_code_command,optional"`
	ExitCodeTimeout   string    `hcl:"exit_code_timeout,optional"`
	SSH               *hclSSH   `hcl:"ssh,block"`
	Serial            *hclSerial `hcl:"serial,block"`
}

type hclSSH struct {
	Host                  string `hcl:"host"`
	Port                  int    `hcl:"port,optional"`
	User                  string `hcl:"user"`
	Password              string `hcl:"password,optional"`
	Shell                 string `hcl:"shell,optional"` // "login" | "pty_only" | "no_pty", or an explicit command
	ConnectTimeout        string `hcl:"connect_timeout,optional"`
	KnownHostsPath        string `hcl:"known_hosts_path,optional"`
	InsecureIgnoreHostKey *bool  `hcl:"insecure_ignore_host_key,optional"`
}

type hclSerial struct {
	Path     string `hcl:"path"`
	Speed    int    `hcl:"speed,optional"`
	DataBits int    `hcl:"data_bits,optional"`
	Parity   string `hcl:"parity,optional"` // "none" | "even" | "odd"
}

// Load reads and validates an HCL config file into an immutable Options
// snapshot (spec.md §6's option set, as the CLI front end's --config flag
// surfaces it).
func Load(filename string) (*Options, error) {
	var f hclFile
	if err := hclsimple.DecodeFile(filename, nil, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}
	return f.toOptions()
}

func (f *hclFile) toOptions() (*Options, error) {
	var opts []Option

	if f.Prompt != "" {
		opts = append(opts, WithPrompt(f.Prompt))
	}
	if f.Quit != "" {
		opts = append(opts, WithQuit(f.Quit))
	}
	if f.RetrieveExitCode != nil {
		opts = append(opts, WithRetrieveExitCode(*f.RetrieveExitCode))
	}
	if f.OnNonZeroExitCode != "" {
		policy, err := parseNonZeroExitPolicy(f.OnNonZeroExitCode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOnNonZeroExitCode(policy))
	}
	if f.SilenceTimeout != "" {
		d, err := time.ParseDuration(f.SilenceTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: invalid silence_timeout %q: %w", f.SilenceTimeout, err)
		}
		opts = append(opts, WithSilenceTimeout(d))
	}
	if f.CommandTimeout != "" {
		d, err := time.ParseDuration(f.CommandTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: invalid command_timeout %q: %w", f.CommandTimeout, err)
		}
		opts = append(opts, WithCommandTimeout(d))
	}
	if f.UnbufferedInput != "" {
		mode, err := parseUnbufferedInput(f.UnbufferedInput)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithUnbufferedInput(mode))
	}
	if f.ExitCodeCommand != "" {
		opts = append(opts, WithExitCodeCommand(f.ExitCodeCommand))
	}
	if f.ExitCodeTimeout != "" {
		d, err := time.ParseDuration(f.ExitCodeTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: invalid exit_code_timeout %q: %w", f.ExitCodeTimeout, err)
		}
		opts = append(opts, WithExitCodeTimeout(d))
	}

	switch {
	case f.SSH != nil && f.Serial != nil:
		return nil, fmt.Errorf("config: ssh and serial blocks are mutually exclusive")
	case f.SSH != nil:
		cfg, err := f.SSH.toConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTransportSSH(cfg))
	case f.Serial != nil:
		cfg, err := f.Serial.toConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTransportSerial(cfg))
	default:
		return nil, fmt.Errorf("config: one of ssh or serial is required")
	}

	return New(opts...)
}

func (s *hclSSH) toConfig() (sshpty.Config, error) {
	cfg := sshpty.Config{
		Host:                  s.Host,
		Port:                  s.Port,
		User:                  s.User,
		Password:              s.Password,
		KnownHostsPath:        s.KnownHostsPath,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey != nil && *s.InsecureIgnoreHostKey,
	}
	if s.ConnectTimeout != "" {
		d, err := time.ParseDuration(s.ConnectTimeout)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid ssh.connect_timeout %q: %w", s.ConnectTimeout, err)
		}
		cfg.ConnectTimeout = d
	}
	switch s.Shell {
	case "", "login":
		cfg.Shell = sshpty.ShellLogin
	case "pty_only":
		cfg.Shell = sshpty.ShellPTYOnly
	case "no_pty":
		cfg.Shell = sshpty.ShellNoPTY
	default:
		cfg.Shell = sshpty.ShellMode(s.Shell)
	}
	return cfg, nil
}

func (s *hclSerial) toConfig() (serialport.Config, error) {
	cfg := serialport.Config{
		Path:     s.Path,
		Speed:    uint32(s.Speed),
		DataBits: s.DataBits,
	}
	switch s.Parity {
	case "", "none":
		cfg.Parity = serialport.ParityNone
	case "even":
		cfg.Parity = serialport.ParityEven
	case "odd":
		cfg.Parity = serialport.ParityOdd
	default:
		return cfg, fmt.Errorf("config: invalid serial.parity %q: must be none, even, or odd", s.Parity)
	}
	return cfg, nil
}

func parseNonZeroExitPolicy(raw string) (NonZeroExitPolicy, error) {
	switch raw {
	case "ignore":
		return Ignore, nil
	case "raise":
		return Raise, nil
	default:
		return Ignore, fmt.Errorf("config: invalid on_non_zero_exit_code %q: must be ignore or raise", raw)
	}
}

func parseUnbufferedInput(raw string) (UnbufferedInput, error) {
	switch raw {
	case "none":
		return InputBuffered, nil
	case "char":
		return InputChar, nil
	case "echo":
		return InputEcho, nil
	default:
		return InputBuffered, fmt.Errorf("config: invalid unbuffered_input %q: must be none, char, or echo", raw)
	}
}
