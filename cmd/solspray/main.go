package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Best effort; the CLI also works from plain environment variables.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "solspray",
		Usage: "Solana fund distribution CLI",
		Description: `A command-line tool for running and managing fund distributions.

Use this CLI to distribute a balance across many recipient accounts,
inspect checkpointed runs, and manage the supporting infrastructure.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Distribution run commands
			{
				Name:  "distribute",
				Usage: "Distribution run commands",
				Subcommands: []*cli.Command{
					distributeRunCommand(),
					distributeStatusCommand(),
					distributeListCommand(),
					distributeBalancesCommand(),
					distributeResetCommand(),
				},
			},
			// Database management commands
			{
				Name:  "db",
				Usage: "Database management commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					migrateDownCommand(),
					migrateStatusCommand(),
					listStatesCommand(),
				},
			},
			// NATS event streaming commands
			{
				Name:  "nats",
				Usage: "NATS event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Temporal sweep schedule commands
			{
				Name:  "temporal",
				Usage: "Temporal sweep schedule commands",
				Subcommands: []*cli.Command{
					createSweepScheduleCommand(),
					deleteSweepScheduleCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "solspray-housekeeping",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for health checks",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "jq expression applied to JSON output",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// cliLogger builds a human-friendly logger for interactive use.
// Logs go to stderr so stdout stays parseable.
func cliLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
