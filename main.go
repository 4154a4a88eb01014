package main

import (
	"context"
	"os"
	"os/signal"

	"hermannm.dev/mabexplorer/cli"
	"hermannm.dev/mabexplorer/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		log.ErrorCause(err, "command failed")
		stop()
		os.Exit(1)
	}
}
