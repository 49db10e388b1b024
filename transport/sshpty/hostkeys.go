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
	"golang.org/x/crypto/ssh/knownhosts"
)

// AcceptAllHostKeys trusts any host key offered by the remote end. Intended
// for lab/throwaway devices where known_hosts management is impractical; an
// options-level opt-in, not the default.
func AcceptAllHostKeys(_ string, _ net.Addr, _ ssh.PublicKey) error {
	return nil
}

// knownHostsCallback builds a host key callback from the user's known_hosts
// file, falling back to accept-all only if the caller explicitly asked for
// it via insecureIgnoreHostKey.
func knownHostsCallback(path string, insecureIgnoreHostKey bool) (ssh.HostKeyCallback, error) {
	if insecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if path == "" {
		if home, ok := os.LookupEnv("HOME"); ok {
			path = home + "/.ssh/known_hosts"
		}
	}
	return knownhosts.New(path)
}
