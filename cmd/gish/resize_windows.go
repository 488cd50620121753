//go:build windows

package main

// onResize is a no-op: Windows consoles do not deliver SIGWINCH.
func onResize(fn func()) (stop func()) {
	return func() {}
}
