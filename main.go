package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/leg100/grafana-token-sidecar/internal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	go func() {
		<-ctx.Done()
		// Stop handling ^C; another ^C will exit the program.
		cancel()
	}()
	if err := internal.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
