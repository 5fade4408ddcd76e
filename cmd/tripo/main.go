package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/basel-ax/tripo/internal/domain"
	"github.com/basel-ax/tripo/internal/prompt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand(prompt.New(os.Stdin, os.Stdout), os.Stdout, os.Stderr).ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()

	os.Exit(exitCode(err, interrupted, os.Stderr))
}

// exitCode reports err on w and maps it to a process exit status
func exitCode(err error, interrupted bool, w io.Writer) int {
	if err == nil {
		return 0
	}

	switch {
	case interrupted || errors.Is(err, context.Canceled):
		color.New(color.FgYellow).Fprintln(w, "\nInterrupted by user.")
		return 130
	case errors.Is(err, domain.ErrInputDirCreated):
		fmt.Fprintln(w, "Add some images and run the program again.")
	case errors.Is(err, domain.ErrNoImages):
		fmt.Fprintf(w, "%v. Put %s images into the input folder and run the program again.\n",
			err, strings.Join(domain.SupportedFormats, "/"))
	case errors.Is(err, domain.ErrAborted):
		fmt.Fprintln(w, "Aborted.")
	default:
		color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
	}
	return 1
}
