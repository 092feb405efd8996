// migrate creates (or with --direction down, drops) the client_storage table for
// STORAGE_DRIVER=postgres. The postgres driver also applies it on open; this command is for
// provisioning the database ahead of the first client run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"event-analytics/client/internal/config"
	"event-analytics/client/internal/db/migrate"
)

func main() {
	direction := pflag.StringP("direction", "d", migrate.Up, "up creates client_storage, down drops it with every persisted id and token")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "client_storage migrate: DATABASE_URL must point at the Postgres database holding client_storage")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("client_storage %s: done\n", *direction)
}
