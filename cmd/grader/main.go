package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli := newCommandLine(os.Stdin, os.Stdout, os.Stderr)
	err := newRootCmd(cli).ExecuteContext(ctx)
	cli.teardown()
	stop()

	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
