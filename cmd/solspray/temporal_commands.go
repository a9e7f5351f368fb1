package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	temporalpkg "github.com/solspray/solspray/service/temporal"
)

func createSweepScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-sweep-schedule",
		Usage: "Create the recurring stale checkpoint sweep schedule",
		Description: `Create a Temporal schedule that periodically evicts checkpoints
that have not been touched within the retention window.

Example:
  solspray temporal create-sweep-schedule --interval 1h --older-than 168h`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "How often the sweep runs",
				Value: time.Hour,
			},
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Checkpoints untouched for this long are evicted",
				Value: 7 * 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)

			client, err := temporalpkg.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("temporal-task-queue"),
				logger,
			)
			if err != nil {
				return fmt.Errorf("failed to create temporal client: %w", err)
			}
			defer client.Close()

			interval := c.Duration("interval")
			olderThan := c.Duration("older-than")

			if err := client.CreateSweepSchedule(c.Context, interval, olderThan); err != nil {
				return fmt.Errorf("failed to create sweep schedule: %w", err)
			}

			fmt.Fprintf(os.Stderr, "sweep schedule created (every %s, evicting checkpoints older than %s)\n",
				interval, olderThan)
			return nil
		},
	}
}

func deleteSweepScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-sweep-schedule",
		Usage: "Delete the stale checkpoint sweep schedule",
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)

			client, err := temporalpkg.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("temporal-task-queue"),
				logger,
			)
			if err != nil {
				return fmt.Errorf("failed to create temporal client: %w", err)
			}
			defer client.Close()

			if err := client.DeleteSweepSchedule(c.Context); err != nil {
				return fmt.Errorf("failed to delete sweep schedule: %w", err)
			}

			fmt.Fprintln(os.Stderr, "sweep schedule deleted")
			return nil
		},
	}
}
