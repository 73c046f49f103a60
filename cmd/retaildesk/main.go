package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/retaildesk/pkg/config"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
)

const serviceName = "retaildesk"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logg := logger.New(logger.Options{ServiceName: serviceName, Output: stderr})
	_ = godotenv.Load()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return 1
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      stderr,
	})
	ctx = logg.WithField(ctx, "command", cmd.name)

	a, err := newApp(ctx, cfg, logg, stdin, stdout)
	if err != nil {
		logg.Error(ctx, "failed to start", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(ctx, "error closing resources", err)
		}
	}()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logg.Debug(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "command failed")
		fmt.Fprintf(stderr, "%s: %s\n", cmd.name, describe(err))
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: retaildesk <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

// describe prefers the operator-facing message of typed errors and falls back
// to the raw text for local failures such as bad flags.
func describe(err error) string {
	if pkgerrors.As(err) != nil {
		return pkgerrors.UserMessage(err)
	}
	return err.Error()
}
