// rconsole - an embedded remote console server and its attach client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rconsole/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rconsole: %v\n", err)
		os.Exit(1)
	}
}
