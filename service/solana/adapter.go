package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)
}

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
// - Alchemy: https://solana-mainnet.g.alchemy.com/v2/YOUR-KEY
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	return r.client.GetLatestBlockhash(ctx, commitment)
}

func (r *realRPCClient) SendTransactionWithOpts(
	ctx context.Context,
	tx *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	return r.client.SendTransactionWithOpts(ctx, tx, opts)
}

func (r *realRPCClient) GetBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	return r.client.GetBalance(ctx, account, commitment)
}
