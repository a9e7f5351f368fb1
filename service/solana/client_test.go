package solana

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	blockhashErr error
	sendErr      error
	sentSig      solana.Signature
	balance      uint64
	balanceErr   error

	sentTxs []*solana.Transaction
}

func (m *mockRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash{},
			LastValidBlockHeight: 100,
		},
	}, nil
}

func (m *mockRPCClient) SendTransactionWithOpts(
	ctx context.Context,
	tx *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	m.sentTxs = append(m.sentTxs, tx)
	return m.sentSig, nil
}

func (m *mockRPCClient) GetBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dial := func(rpcURL string) RPCClient { return mock }
	return NewClient(dial, 0, nil, logger)
}

func TestSubmit_Success(t *testing.T) {
	ctx := context.Background()

	payer := solana.NewWallet().PrivateKey
	recipient := solana.NewWallet().PublicKey()
	wantSig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	mock := &mockRPCClient{sentSig: wantSig}
	client := newTestClient(mock)

	sig, err := client.Submit(ctx, "https://rpc.example.com", payer, recipient, 1_000_000)

	require.NoError(t, err)
	assert.Equal(t, wantSig, sig)
	require.Len(t, mock.sentTxs, 1)

	// The submitted transaction carries exactly one signature from the payer.
	assert.Len(t, mock.sentTxs[0].Signatures, 1)
}

func TestSubmit_BlockhashError(t *testing.T) {
	ctx := context.Background()

	payer := solana.NewWallet().PrivateKey
	recipient := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{blockhashErr: assert.AnError}
	client := newTestClient(mock)

	_, err := client.Submit(ctx, "https://rpc.example.com", payer, recipient, 1_000_000)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get latest blockhash")
	assert.Empty(t, mock.sentTxs)
}

func TestSubmit_SendErrorPropagatesRaw(t *testing.T) {
	ctx := context.Background()

	payer := solana.NewWallet().PrivateKey
	recipient := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{sendErr: assert.AnError}
	client := newTestClient(mock)

	_, err := client.Submit(ctx, "https://rpc.example.com", payer, recipient, 1_000_000)

	// The raw RPC error must surface unwrapped so the retry
	// controller can classify it.
	require.ErrorIs(t, err, assert.AnError)
}

func TestBalance(t *testing.T) {
	ctx := context.Background()

	account := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{balance: 42_000_000_000}
	client := newTestClient(mock)

	balance, err := client.Balance(ctx, "https://rpc.example.com", account)

	require.NoError(t, err)
	assert.Equal(t, uint64(42_000_000_000), balance)
}

func TestBalance_Error(t *testing.T) {
	ctx := context.Background()

	account := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{balanceErr: assert.AnError}
	client := newTestClient(mock)

	_, err := client.Balance(ctx, "https://rpc.example.com", account)
	require.Error(t, err)
}

func TestClient_ReusesDialedEndpoints(t *testing.T) {
	dials := 0
	mock := &mockRPCClient{balance: 1}
	dial := func(rpcURL string) RPCClient {
		dials++
		return mock
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(dial, 0, nil, logger)

	account := solana.NewWallet().PublicKey()
	ctx := context.Background()

	_, err := client.Balance(ctx, "https://rpc-a.example.com", account)
	require.NoError(t, err)
	_, err = client.Balance(ctx, "https://rpc-a.example.com", account)
	require.NoError(t, err)
	_, err = client.Balance(ctx, "https://rpc-b.example.com", account)
	require.NoError(t, err)

	assert.Equal(t, 2, dials)
}
