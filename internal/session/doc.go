// Package session owns the fixed set of process-backed panes and replays
// each pane's last command when the repository changes.
//
// A Session records what it was last asked to run (an Invocation) before
// spawning it, so a restart always re-runs exactly that command in exactly
// that directory, even after a failed spawn. The Orchestrator restarts the
// non-primary sessions one after another, in a fixed order.
//
// Session state is owned by a single goroutine (the application's control
// loop). Child exits reach that goroutine through Exits; nothing in this
// package locks session state.
package session
