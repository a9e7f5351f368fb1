package solana

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solspray/solspray/service/metrics"
)

// Dialer constructs an RPCClient for an endpoint URL.
// Production code uses NewRPCClient; tests substitute mocks per endpoint.
type Dialer func(rpcURL string) RPCClient

// Client submits native SOL transfers against a caller-chosen endpoint.
// It wraps the RPC layer with domain-specific operations and an enforced
// per-call timeout so a hung endpoint cannot stall a whole distribution run.
type Client struct {
	dial    Dialer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[string]RPCClient
}

// NewClient creates a new transfer submission client.
// If m is nil, no metrics will be recorded. A zero timeout defaults to 3s.
func NewClient(dial Dialer, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if dial == nil {
		dial = NewRPCClient
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		dial:    dial,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		clients: make(map[string]RPCClient),
	}
}

// rpcFor returns the cached RPC client for an endpoint, dialing on first use.
func (c *Client) rpcFor(endpoint string) RPCClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[endpoint]; ok {
		return client
	}
	client := c.dial(endpoint)
	c.clients[endpoint] = client
	return client
}

// Submit builds, signs, and submits a native SOL transfer of the given
// lamports from payer to recipient via the given endpoint. The call is
// bounded by the client's timeout; it returns the transaction signature
// on acceptance or the raw RPC error for the caller to classify.
func (c *Client) Submit(
	ctx context.Context,
	endpoint string,
	payer solana.PrivateKey,
	recipient solana.PublicKey,
	lamports uint64,
) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.rpcFor(endpoint)
	payerKey := payer.PublicKey()

	start := time.Now()
	recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetLatestBlockhash", status, endpoint, duration)
	}
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payerKey, recipient).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(payerKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payerKey) {
			return &payer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	start = time.Now()
	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	duration = time.Since(start).Seconds()

	status = "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("SendTransaction", status, endpoint, duration)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "transfer submission failed",
			"endpoint", endpoint,
			"recipient", recipient.String(),
			"lamports", lamports,
			"error", err,
		)
		return solana.Signature{}, err
	}

	c.logger.DebugContext(ctx, "transfer submitted",
		"endpoint", endpoint,
		"recipient", recipient.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)

	return sig, nil
}

// Balance returns the lamport balance of an account via the given endpoint.
func (c *Client) Balance(ctx context.Context, endpoint string, account solana.PublicKey) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.rpcFor(endpoint)

	start := time.Now()
	result, err := client.GetBalance(ctx, account, rpc.CommitmentFinalized)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetBalance", status, endpoint, duration)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return result.Value, nil
}
