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
	"os"

	"github.com/spf13/cobra"

	"github.com/thyth-tools/commando/internal/obslog"
)

var (
	configPath string
	verbosity  int
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "commando",
		Short: "Drive an interactive prompted shell over SSH or serial",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obslog.SetDefault(os.Stderr, obslog.Verbosity(verbosity))
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "HCL config file (see config/hclconfig.go)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "more output, repeat for even more")

	root.AddCommand(
		newConnectCommand(),
		newRunScriptCommand(),
		newVersionCommand(),
	)

	return root
}
