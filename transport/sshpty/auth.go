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

package sshpty

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// authMethods builds the ordered list of auth methods to offer the server:
// an SSH agent (if SSH_AUTH_SOCK is set and usable), then the caller's own
// methods from Config.ExtraAuth (e.g. public key files), then a plain
// password if one was configured.
func authMethods(password string, extra []ssh.AuthMethod) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if sock, ok := os.LookupEnv("SSH_AUTH_SOCK"); ok {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}
	methods = append(methods, extra...)
	if password != "" {
		methods = append(methods, ssh.Password(password))
	}
	return methods
}
