//go:build unix

package isolation

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// redirectStderrFD points descriptor 2 at w so writers that captured stderr
// before the swap (loggers, println, cgo) land in w as well. The returned
// function puts the original descriptor back.
func redirectStderrFD(w *os.File) (func() error, error) {
	saved, err := unix.Dup(unix.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate stderr descriptor: %w", err)
	}
	if err := unix.Dup2(int(w.Fd()), unix.Stderr); err != nil {
		_ = unix.Close(saved)
		return nil, fmt.Errorf("failed to redirect stderr descriptor: %w", err)
	}
	return func() error {
		defer unix.Close(saved)
		if err := unix.Dup2(saved, unix.Stderr); err != nil {
			return fmt.Errorf("failed to restore stderr descriptor: %w", err)
		}
		return nil
	}, nil
}
