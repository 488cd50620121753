//go:build !linux && !darwin

package term

import (
	"os"
	"os/exec"
)

func startPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, error) {
	return nil, ErrPTYUnsupported
}

func setWinSize(f *os.File, cols, rows uint16) error {
	return ErrPTYUnsupported
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
