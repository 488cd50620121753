//go:build darwin

package term

import (
	"bytes"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func unlockPT(master *os.File) error {
	fd := int(master.Fd())
	if err := ioctl(fd, unix.TIOCPTYGRANT, 0); err != nil {
		return err
	}
	return ioctl(fd, unix.TIOCPTYUNLK, 0)
}

func ptsName(master *os.File) (string, error) {
	var name [128]byte
	if err := ioctl(int(master.Fd()), unix.TIOCPTYGNAME, uintptr(unsafe.Pointer(&name[0]))); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(name[:], 0); i >= 0 {
		return string(name[:i]), nil
	}
	return string(name[:]), nil
}

func ioctl(fd int, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return errno
	}
	return nil
}
