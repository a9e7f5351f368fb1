package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/solspray/solspray/service/distributor"
	natspkg "github.com/solspray/solspray/service/nats"
	solpkg "github.com/solspray/solspray/service/solana"
)

// recipientEntry is one row of the recipients file: a JSON array of
// {"index": 1, "address": "..."} objects.
type recipientEntry struct {
	Index   int64  `json:"index"`
	Address string `json:"address"`
}

// fileDirectory resolves recipient indices from a recipients file.
type fileDirectory struct {
	entries map[int64]solana.PublicKey
	client  *solpkg.Client
	pool    *solpkg.EndpointPool
}

func (d *fileDirectory) Resolve(_ context.Context, index int64) (*distributor.RecipientRef, error) {
	address, ok := d.entries[index]
	if !ok {
		return nil, nil
	}
	return &distributor.RecipientRef{Index: index, Address: address}, nil
}

func (d *fileDirectory) BalanceOf(ctx context.Context, ref *distributor.RecipientRef) (uint64, error) {
	return d.client.Balance(ctx, d.pool.Current(), ref.Address)
}

// loadRecipients parses the recipients file and returns the directory plus
// the sorted index set.
func loadRecipients(path string) (map[int64]solana.PublicKey, []int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read recipients file: %w", err)
	}

	var rows []recipientEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to parse recipients file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("recipients file is empty")
	}

	entries := make(map[int64]solana.PublicKey, len(rows))
	indices := make([]int64, 0, len(rows))
	for _, row := range rows {
		pub, err := solana.PublicKeyFromBase58(row.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid address for recipient %d: %w", row.Index, err)
		}
		if _, dup := entries[row.Index]; dup {
			return nil, nil, fmt.Errorf("duplicate recipient index %d", row.Index)
		}
		entries[row.Index] = pub
		indices = append(indices, row.Index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	return entries, indices, nil
}

// outcomeView is the CLI rendering of a transfer outcome.
type outcomeView struct {
	Index     int64  `json:"index"`
	Address   string `json:"address,omitempty"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

func outcomesToViews(outcomes []distributor.TransferOutcome) []outcomeView {
	views := make([]outcomeView, len(outcomes))
	for i, o := range outcomes {
		views[i] = outcomeView{
			Index:     o.Index,
			Address:   o.Address,
			Lamports:  o.Lamports,
			Signature: o.Signature,
			Skipped:   o.Skipped,
		}
		if o.Err != nil {
			views[i].Error = o.Err.Error()
		}
	}
	return views
}

func distributeRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run (or resume) a distribution",
		Description: `Distribute a lamport balance across the recipients file.

If a checkpoint exists for the owner id, the run resumes where it left
off; the total flag is then ignored in favor of the checkpointed
remaining amount.

Example:
  solspray distribute run \
    --owner airdrop-2026-08 \
    --payer-keyfile ~/.config/solana/payer.json \
    --recipients recipients.json \
    --total-lamports 1000000000`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Aliases:  []string{"o"},
				Usage:    "Owner id naming this run",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "payer-keyfile",
				Usage:    "Path to the payer's Solana keygen file",
				EnvVars:  []string{"PAYER_KEYFILE"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "recipients",
				Aliases:  []string{"r"},
				Usage:    "Path to the recipients JSON file",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "total-lamports",
				Usage: "Total lamports to distribute (ignored on resume)",
			},
			&cli.Uint64Flag{
				Name:  "base-lamports",
				Usage: "Fixed per-recipient amount; zero means randomized amounts",
			},
			&cli.StringSliceFlag{
				Name:    "rpc-endpoint",
				Usage:   "Solana RPC endpoint (repeatable for failover)",
				EnvVars: []string{"SOLANA_RPC_ENDPOINTS"},
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Concurrent transfers per batch",
				Value: 4,
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Retry budget per transfer",
				Value: 5,
			},
			&cli.DurationFlag{
				Name:  "backoff-base",
				Usage: "First exponential backoff delay",
				Value: time.Second,
			},
			&cli.DurationFlag{
				Name:  "submit-timeout",
				Usage: "Per-submission RPC timeout",
				Value: 3 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish progress events to NATS",
			},
		},
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)

			payer, err := solana.PrivateKeyFromSolanaKeygenFile(c.String("payer-keyfile"))
			if err != nil {
				return fmt.Errorf("failed to load payer key: %w", err)
			}

			entries, indices, err := loadRecipients(c.String("recipients"))
			if err != nil {
				return err
			}

			endpoints := c.StringSlice("rpc-endpoint")
			pool, err := solpkg.NewEndpointPool(endpoints)
			if err != nil {
				return fmt.Errorf("at least one --rpc-endpoint is required: %w", err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			client := solpkg.NewClient(nil, c.Duration("submit-timeout"), nil, logger)
			directory := &fileDirectory{entries: entries, client: client, pool: pool}

			var sink distributor.ProgressSink
			if c.Bool("publish") {
				publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer publisher.Close()
				sink = natspkg.NewEventSink(publisher, logger)
			} else {
				sink = distributor.ProgressFunc(func(msg string) {
					fmt.Fprintln(os.Stderr, msg)
				})
			}

			dist, err := distributor.NewDistributor(distributor.Config{
				Store:       store,
				Submitter:   client,
				Directory:   directory,
				Pool:        pool,
				Logger:      logger,
				BatchSize:   c.Int("batch-size"),
				MaxAttempts: c.Int("max-attempts"),
				BackoffBase: c.Duration("backoff-base"),
			})
			if err != nil {
				return err
			}

			outcomes, runErr := dist.Distribute(c.Context, distributor.DistributeParams{
				OwnerID:       c.String("owner"),
				Payer:         payer,
				Recipients:    indices,
				TotalLamports: c.Uint64("total-lamports"),
				BaseLamports:  c.Uint64("base-lamports"),
				Sink:          sink,
			})

			if len(outcomes) > 0 {
				if err := outputJSON(c, outcomesToViews(outcomes)); err != nil {
					return err
				}
			}

			var resumable *distributor.ResumableError
			if errors.As(runErr, &resumable) {
				return fmt.Errorf(
					"run paused; re-run the same command to resume from recipient %d (%d lamports remaining): %w",
					resumable.NextIndex, resumable.Remaining, runErr,
				)
			}
			return runErr
		},
	}
}

func distributeStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the checkpoint for an unfinished run",
		ArgsUsage: "<owner_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: owner id")
			}
			ownerID := c.Args().First()

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			state, err := store.GetState(c.Context, ownerID)
			if err != nil {
				return fmt.Errorf("failed to get distribution state: %w", err)
			}
			if state == nil {
				return fmt.Errorf("no unfinished run for owner %q", ownerID)
			}

			if c.Bool("json") || c.String("filter") != "" {
				return outputJSON(c, state)
			}

			fmt.Printf("Owner:              %s\n", state.OwnerID)
			fmt.Printf("Last Paid Index:    %d\n", state.LastProcessedIndex)
			fmt.Printf("Next Index:         %d\n", state.LastProcessedIndex+1)
			fmt.Printf("Remaining Lamports: %d\n", state.RemainingAmount)
			fmt.Printf("Base Lamports:      %d\n", state.BaseAmount)
			fmt.Printf("Failed Attempts:    %d\n", state.FailedAttempts)
			fmt.Printf("Updated:            %s\n", state.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func distributeListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List all unfinished runs",
		Aliases: []string{"ls"},
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

			if c.Bool("json") || c.String("filter") != "" {
				return outputJSON(c, states)
			}

			if len(states) == 0 {
				fmt.Println("No unfinished runs")
				return nil
			}
			for _, state := range states {
				fmt.Printf("%s\tnext=%d\tremaining=%d\tattempts=%d\tupdated=%s\n",
					state.OwnerID,
					state.LastProcessedIndex+1,
					state.RemainingAmount,
					state.FailedAttempts,
					state.UpdatedAt.Format(time.RFC3339),
				)
			}
			fmt.Fprintf(os.Stderr, "\nTotal: %d unfinished runs\n", len(states))
			return nil
		},
	}
}

func distributeBalancesCommand() *cli.Command {
	return &cli.Command{
		Name:  "balances",
		Usage: "Show the on-chain balance of every recipient in a recipients file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "recipients",
				Aliases:  []string{"r"},
				Usage:    "Path to the recipients JSON file",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "rpc-endpoint",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_ENDPOINTS"},
			},
		},
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)

			entries, indices, err := loadRecipients(c.String("recipients"))
			if err != nil {
				return err
			}

			pool, err := solpkg.NewEndpointPool(c.StringSlice("rpc-endpoint"))
			if err != nil {
				return fmt.Errorf("at least one --rpc-endpoint is required: %w", err)
			}

			client := solpkg.NewClient(nil, 0, nil, logger)
			directory := &fileDirectory{entries: entries, client: client, pool: pool}

			type balanceView struct {
				Index    int64  `json:"index"`
				Address  string `json:"address"`
				Lamports uint64 `json:"lamports"`
			}

			views := make([]balanceView, 0, len(indices))
			for _, index := range indices {
				ref, err := directory.Resolve(c.Context, index)
				if err != nil {
					return err
				}
				lamports, err := directory.BalanceOf(c.Context, ref)
				if err != nil {
					return fmt.Errorf("failed to get balance for recipient %d: %w", index, err)
				}
				views = append(views, balanceView{
					Index:    index,
					Address:  ref.Address.String(),
					Lamports: lamports,
				})
			}

			return outputJSON(c, views)
		},
	}
}

func distributeResetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "Discard a run's checkpoint so it starts from scratch",
		ArgsUsage: "<owner_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: owner id")
			}
			ownerID := c.Args().First()

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.DeleteState(c.Context, ownerID); err != nil {
				return fmt.Errorf("failed to reset distribution state: %w", err)
			}

			fmt.Fprintf(os.Stderr, "checkpoint for %q discarded\n", ownerID)
			return nil
		},
	}
}
