// Command jira-transition moves the Jira issue referenced by the current
// CI branch through its workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/jira-transition/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newDeps(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	logging.Flush(2 * time.Second)
	os.Exit(code)
}

// execute runs the CLI and maps its result to a process exit code.
// Only configuration and usage errors fail the process; tracker
// failures are logged by the run itself.
func execute(ctx context.Context, d deps, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(d)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var logged *loggedError
	if !errors.As(err, &logged) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

// loggedError marks an error the structured logger already reported.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }

func (e *loggedError) Unwrap() error { return e.err }
