package isolation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/expectkit/pkg/scope"
)

// CaptureStderr points os.Stderr, and the process's stderr descriptor, at a pipe
// while fn runs and returns whatever was written to it. Both are put back on
// every path, including a panic.
func CaptureStderr(fn func() error) (string, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(&buf, r)
	}()

	var closed bool
	closeWriter := func() {
		if !closed {
			closed = true
			_ = w.Close()
			<-done
		}
	}
	defer closeWriter()

	runErr := scope.Swap(&os.Stderr, w, func() error {
		return withStderrFD(w, fn)
	})
	closeWriter()
	return buf.String(), runErr
}

func withStderrFD(w *os.File, fn func() error) (err error) {
	restore, err := redirectStderrFD(w)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn()
}

// WithIsolatedStderr runs fn with os.Stderr silenced. Output is discarded.
func WithIsolatedStderr(fn func() error) error {
	_, err := CaptureStderr(fn)
	return err
}
