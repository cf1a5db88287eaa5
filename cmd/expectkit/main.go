// File: cmd/expectkit/main.go
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/expectkit/cmd"
	"github.com/xkilldash9x/expectkit/internal/observability"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	osExit(code)
}

// run executes the CLI and maps the result to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defer observability.Sync()
	if err := cmd.Execute(ctx, args, stdout, stderr); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		return 1
	}
	return 0
}
