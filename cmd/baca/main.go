// cmd/baca/main.go
//
// This is the entry point for the baca CLI. Every subcommand works on a
// project directory holding a .baca folder (created by `baca init`) and a
// directory of segment definitions.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/kingrea/baca/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "baca: %v\n", err)
		os.Exit(errs.ExitCode(errs.Classify(err)))
	}
}
