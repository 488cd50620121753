// Package term provides the terminal surfaces sessions draw into.
//
// Status panes run their command on a pseudo-terminal whose output is
// captured into a Pane buffer. The primary shell runs on a pseudo-terminal
// wired straight through to the host terminal, confined to the lower part
// of the screen by a scroll region, while the panes are drawn above it.
//
// # Components
//
//   - PTY: pseudo-terminal allocation (Linux and macOS)
//   - Pane: bounded, clearable output buffer
//   - PaneSurface: session.Surface that captures output into a Pane
//   - Screen: host terminal in raw mode, split into pane rows and shell rows
//   - ShellSurface: session.Surface for the interactive shell
//   - Renderer: lays panes out side by side with lipgloss
package term
