package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrscanner/internal/app"
	"qrscanner/internal/config"
	"qrscanner/internal/service/scanner"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code; deferred cleanup runs on every path.
func run() int {
	application, err := app.NewApp(config.Load())
	if err != nil {
		log.Printf("Failed to start scanner: %v", err)
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = application.Run(ctx)
	if err != nil {
		log.Printf("Scanner stopped: %v", err)
	}
	return exitCode(err)
}

// exitCode maps the result of Run to a process exit code. A refused camera
// permission closes the local scanner with 2.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, scanner.ErrPermissionDenied):
		return 2
	}
	return 1
}
