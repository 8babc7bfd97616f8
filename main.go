package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coinbet/cmd"
	"coinbet/database"

	log "github.com/sirupsen/logrus"
)

const usage = "usage: coinbet [run | migrate up|down|status | settle <market-id> | reconcile]"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "run":
		err = cmd.Run(ctx)
	case "migrate":
		err = handleMigrationCommand()
	case "settle":
		if len(os.Args) < 3 {
			err = errors.New(usage)
			break
		}
		err = cmd.Settle(ctx, os.Args[2])
	case "reconcile":
		err = cmd.Reconcile(ctx)
	default:
		err = fmt.Errorf("unknown command %q, %s", command, usage)
	}

	if err != nil {
		log.WithError(err).Fatalf("%s failed", command)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: coinbet migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
