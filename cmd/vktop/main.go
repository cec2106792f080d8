// Command vktop prints the most liked or reposted posts of a VK wall.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/vktop/pkg/vkapi"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil && ctx.Err() != nil {
		err = errors.Join(err, ctx.Err())
	}
	return report(err, stderr)
}

// usageError marks problems with the command line itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// report prints err for a human and maps it to an exit code.
func report(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var ue *usageError
	var se *vkapi.SourceError
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "vktop: interrupted, exiting")
		return exitInterrupted
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "vktop: %v\nRun 'vktop --help' for usage.\n", ue)
		return exitUsage
	case errors.Is(err, vkapi.ErrPageNotFound):
		fmt.Fprintf(stderr, "vktop: page not found: %v\n", err)
	case errors.As(err, &se) && se.Class == vkapi.ErrorClassAccess:
		fmt.Fprintf(stderr, "vktop: the wall is not accessible (%s, code %d)\n", se.Message, se.Code)
	case errors.Is(err, vkapi.ErrRetryExhausted):
		fmt.Fprintf(stderr, "vktop: VK kept rate limiting the requests, try again later or lower --workers: %v\n", err)
	default:
		fmt.Fprintf(stderr, "vktop: %v\n", err)
	}
	return exitError
}
