package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/solspray/solspray/service/db"
)

// getStore connects to the database and returns a checkpoint store plus a
// closer for the underlying pool.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database URL is required (set DATABASE_URL or use --database-url)")
	}

	pool, err := pgxpool.New(c.Context, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	return store, pool.Close, nil
}

// outputJSON marshals v to stdout, applying the --filter jq expression if one
// was given.
func outputJSON(c *cli.Context, v interface{}) error {
	filter := c.String("filter")
	if filter == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("invalid filter expression: %w", err)
	}

	// gojq operates on any-typed values, so round-trip through JSON first.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	iter := query.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("filter evaluation failed: %w", err)
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode filtered output: %w", err)
		}
	}
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run all pending database migrations",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("database URL is required (set DATABASE_URL or use --database-url)")
			}
			return db.MigrateUp(cliLogger(c), databaseURL)
		},
	}
}

func migrateDownCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate-down",
		Usage: "Roll back the most recent database migration",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("database URL is required (set DATABASE_URL or use --database-url)")
			}
			return db.MigrateDown(cliLogger(c), databaseURL)
		},
	}
}

func migrateStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate-status",
		Usage: "Show the status of all database migrations",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("database URL is required (set DATABASE_URL or use --database-url)")
			}
			return db.MigrateStatus(cliLogger(c), databaseURL)
		},
	}
}

func listStatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-states",
		Usage: "Dump all checkpoint rows as JSON",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			states, err := store.ListStates(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list distribution states: %w", err)
			}
			return outputJSON(c, states)
		},
	}
}
