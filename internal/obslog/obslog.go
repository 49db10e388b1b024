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

// Package obslog builds the colored log/slog handler commando's CLI front
// end installs as the default logger, the same tint-based setup the
// teacher's root command wires in PersistentPreRunE.
package obslog

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Verbosity maps a cobra `-v`/`-vv` count onto a slog level.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Verbose
	Debug
)

func (v Verbosity) level() slog.Level {
	switch {
	case v >= Debug:
		return slog.LevelDebug
	case v >= Verbose:
		return slog.LevelInfo
	case v >= Normal:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// New builds a *slog.Logger writing tint-formatted records to w at the
// level verbosity selects.
func New(w io.Writer, verbosity Verbosity) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      verbosity.level(),
		TimeFormat: time.TimeOnly,
	}))
}

// SetDefault installs New's logger as the process-wide default, mirroring
// the teacher's PersistentPreRunE (spec.md carries no opinion on logging,
// so the ambient behavior is the teacher's own).
func SetDefault(w io.Writer, verbosity Verbosity) *slog.Logger {
	logger := New(w, verbosity)
	slog.SetDefault(logger)
	return logger
}
