//go:build linux || darwin

package term

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func startPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, error) {
	master, slave, err := openPTY()
	if err != nil {
		return nil, err
	}

	if err := setWinSize(master, cols, rows); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}

	// the child holds its own copy
	slave.Close()

	return &masterPTY{master: master}, nil
}

func openPTY() (*os.File, *os.File, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, nil, err
	}

	if err := unlockPT(master); err != nil {
		master.Close()
		return nil, nil, err
	}

	slavePath, err := ptsName(master)
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	return master, slave, nil
}

func setWinSize(f *os.File, cols, rows uint16) error {
	return unix.IoctlSetWinsize(int(f.Fd()), unix.TIOCSWINSZ, &unix.Winsize{
		Row: rows,
		Col: cols,
	})
}

// killGroup kills the process group led by pid. Children run under Setsid,
// so the group also holds anything the shell started.
func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == unix.ESRCH {
		return nil
	}
	return err
}
