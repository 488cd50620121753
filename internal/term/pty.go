package term

import (
	"os"
	"os/exec"
)

// PTY is the master side of a pseudo-terminal.
type PTY interface {
	// File returns the master file.
	File() *os.File

	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)

	// Resize changes the terminal size seen by the child.
	Resize(cols, rows uint16) error

	Close() error
}

// StartPTY starts cmd with a new pseudo-terminal as its controlling
// terminal and stdio.
func StartPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, error) {
	return startPTY(cmd, cols, rows)
}

// masterPTY is the PTY implementation shared by every platform.
type masterPTY struct {
	master *os.File
}

func (p *masterPTY) File() *os.File {
	return p.master
}

func (p *masterPTY) Read(buf []byte) (int, error) {
	return p.master.Read(buf)
}

func (p *masterPTY) Write(data []byte) (int, error) {
	return p.master.Write(data)
}

func (p *masterPTY) Resize(cols, rows uint16) error {
	return setWinSize(p.master, cols, rows)
}

func (p *masterPTY) Close() error {
	return p.master.Close()
}
