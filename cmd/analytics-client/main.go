// analytics-client is a command-line analytics client: it keeps a persistent visitor identity,
// restores and manages an authenticated session against the API gateway, and dispatches
// telemetry events for page views and user actions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"event-analytics/client/internal/config"
	"event-analytics/client/internal/logging"
)

const usage = `usage: analytics-client [flags] <command> [args]

commands:
  status                          show session, token and identity
  login -u USER [-p PASS]         log in (prompts for the password on a terminal)
  register -u USER -e EMAIL [-p PASS]
  logout
  track EVENT [key=value ...]     dispatch a custom event
  visit PATH|back|forward ...     navigate, emitting one page_view per step
  analytics ENDPOINT              query /analytics/ENDPOINT (superuser only)
  reset-identity                  forget the visitor and browser-session ids

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("analytics-client", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	config.AddFlags(flagSet)
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.LoadWithFlags(flagSet)
	if err != nil {
		return err
	}
	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	cmd, ok := commands[rest[0]]
	if !ok {
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}

	a, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer a.close()
	return cmd(ctx, a, rest[1:])
}
