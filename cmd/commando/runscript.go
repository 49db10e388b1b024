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
	"strings"

	"github.com/spf13/cobra"

	"github.com/thyth-tools/commando/config"
	"github.com/thyth-tools/commando/session"
)

func newRunScriptCommand() *cobra.Command {
	var host string
	var port int
	var user string
	var password string
	var serialPath string
	var serialSpeed int
	var prompt string
	var quit string
	var onNonZero string

	cmd := &cobra.Command{
		Use:   "run-script <file>",
		Short: "Run a newline-separated list of commands against a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts *config.Options
			var err error
			if configPath != "" {
				opts, err = config.Load(configPath)
			} else {
				opts, err = buildOptions(host, port, user, password, serialPath, serialSpeed, prompt, quit)
			}
			if err != nil {
				return err
			}

			commands, err := readCommands(args[0])
			if err != nil {
				return err
			}

			s, err := session.New(opts, nil, nil, nil)
			if err != nil {
				return fmt.Errorf("commando: building session: %w", err)
			}

			ctx := context.Background()
			return s.Run(ctx, func(s *session.Session) error {
				for _, line := range commands {
					out, err := s.Exec(ctx, line, session.WithRetrieveExitCode(true))
					if err != nil {
						return fmt.Errorf("commando: running %q: %w", line, err)
					}
					fmt.Print(out)
					code := s.LastExitCode()
					if n, ok := code.Int(); ok && n != 0 {
						fmt.Fprintf(os.Stderr, "commando: %q exited %s\n", line, code)
						if onNonZero == "stop" {
							return fmt.Errorf("commando: stopping after non-zero exit from %q", line)
						}
					}
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
	cmd.Flags().StringVar(&onNonZero, "on-non-zero", "continue", "continue or stop running the script on a non-zero exit code")

	return cmd
}

func readCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("commando: opening %s: %w", path, err)
	}
	defer f.Close()

	var commands []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("commando: reading %s: %w", path, err)
	}
	return commands, nil
}
