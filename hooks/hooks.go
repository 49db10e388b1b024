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

// Package hooks implements the per-name ordered callback lists used by
// session lifecycle and dialect composition. Dialects register themselves
// by composing a Registry (appending to a parent's chain), never by
// subclassing a session type.
package hooks

// Name identifies one of the defined hook points.
type Name string

const (
	OnDebug      Name = "on_debug"
	OnBeforeRun  Name = "on_before_run"
	OnAfterRun   Name = "on_after_run"
	OnInit       Name = "on_init"
	OnException  Name = "on_exception"
	BeforeInit   Name = "before_init"
	AfterInit    Name = "after_init"
	BeforeTerm   Name = "before_term"
	AfterTerm    Name = "after_term"
)

// Result is returned by a Func to say whether it handled the call (stopping
// further iteration) or lets the chain continue.
type Result int

const (
	Continue Result = iota
	Break
)

// Func is a single hook callback. args carries whatever extra data the call
// site associates with the hook (e.g. the exception for OnException).
type Func func(session interface{}, args ...interface{}) Result

// Registry holds the ordered callback lists for one session type, flattened
// from a parent chain at construction time.
type Registry struct {
	chains map[Name][]Func
}

// NewRegistry builds a registry whose chains are the concatenation of the
// parent's chains (if any) followed by this type's own, preserving
// insertion order within each half — "subclass chains appended after parent
// chains" (spec.md §3).
func NewRegistry(parent *Registry) *Registry {
	r := &Registry{chains: make(map[Name][]Func)}
	if parent != nil {
		for name, fns := range parent.chains {
			r.chains[name] = append(r.chains[name], fns...)
		}
	}
	return r
}

// On appends a callback to the named hook's chain.
func (r *Registry) On(name Name, fn Func) {
	r.chains[name] = append(r.chains[name], fn)
}

// Run invokes every callback registered for name, in order, ignoring their
// results. Used for hooks with no handled/continue/abort semantics
// (OnBeforeRun, OnAfterRun, and after_term's unconditional final firing).
func (r *Registry) Run(name Name, session interface{}, args ...interface{}) {
	for _, fn := range r.chains[name] {
		fn(session, args...)
	}
}

// RunUntilHandled invokes callbacks registered for name in order, stopping
// as soon as one returns Break. Reports whether any callback did so.
func (r *Registry) RunUntilHandled(name Name, session interface{}, args ...interface{}) (handled bool) {
	for _, fn := range r.chains[name] {
		if fn(session, args...) == Break {
			return true
		}
	}
	return false
}

// RunAbortable invokes callbacks registered for name in order, threading a
// trailing *error the same way OnInit callers already do: a callback that
// wants to abort the chain sets *errOut. The chain stops at the first
// callback that does so, and that error is returned to the caller — giving
// before_init/after_init/before_term/after_term (which otherwise have no
// handled/continue semantics) a way to signal failure (spec.md §8 scenario
// 6, where a before_init failure must stop the rest of setup from running).
func (r *Registry) RunAbortable(name Name, session interface{}, args ...interface{}) error {
	var err error
	callArgs := append(append([]interface{}{}, args...), &err)
	for _, fn := range r.chains[name] {
		fn(session, callArgs...)
		if err != nil {
			return err
		}
	}
	return nil
}
