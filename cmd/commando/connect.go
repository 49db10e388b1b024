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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/session"
	"github.com/thyth-tools/commando/transport/serialport"
	"github.com/thyth-tools/commando/transport/sshpty"
)

func newConnectCommand() *cobra.Command {
	var host string
	var port int
	var user string
	var password string
	var serialPath string
	var serialSpeed int
	var prompt string
	var quit string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive session and relay stdin/stdout to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(host, port, user, password, serialPath, serialSpeed, prompt, quit)
			if err != nil {
				return err
			}

			s, err := session.New(opts, nil, nil, nil)
			if err != nil {
				return fmt.Errorf("commando: building session: %w", err)
			}

			ctx := context.Background()
			scanner := bufio.NewScanner(os.Stdin)
			return s.Run(ctx, func(s *session.Session) error {
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}
					out, err := s.ExecIgnoreCode(ctx, line)
					if err != nil {
						return err
					}
					fmt.Print(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "SSH host (mutually exclusive with --serial)")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&user, "user", "", "SSH user")
	cmd.Flags().StringVar(&password, "password", "", "SSH password (prompted interactively if omitted and stdin is a terminal)")
	cmd.Flags().StringVar(&serialPath, "serial", "", "Serial device path (mutually exclusive with --host)")
	cmd.Flags().IntVar(&serialSpeed, "speed", 115200, "Serial baud rate")
	cmd.Flags().StringVar(&prompt, "prompt", "~~#", "Expected shell prompt literal")
	cmd.Flags().StringVar(&quit, "quit", "exit", "Command sent to end the session")

	return cmd
}

// buildOptions assembles a config.Options from connect's flags, prompting
// for a password on the controlling terminal when an SSH target is given
// without one (spec.md never specifies auth UX; this follows the teacher's
// own interactive-password pattern).
func buildOptions(host string, port int, user, password, serialPath string, serialSpeed int, prompt, quit string) (*config.Options, error) {
	opts := []config.Option{
		config.WithPrompt(prompt),
		config.WithQuit(quit),
	}

	switch {
	case serialPath != "":
		opts = append(opts, config.WithTransportSerial(serialport.Config{
			Path:  serialPath,
			Speed: uint32(serialSpeed),
		}))
	case host != "":
		if password == "" && term.IsTerminal(int(syscall.Stdin)) {
			var err error
			password, err = promptPassword(user, host)
			if err != nil {
				return nil, err
			}
		}
		opts = append(opts, config.WithTransportSSH(sshpty.Config{
			Host:           host,
			Port:           port,
			User:           user,
			Password:       password,
			ConnectTimeout: 10 * time.Second,
		}))
	default:
		return nil, fmt.Errorf("commando: one of --host or --serial is required")
	}

	return config.New(opts...)
}

func promptPassword(user, host string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("commando: reading password: %w", err)
	}
	return string(passwordBytes), nil
}
