package distributor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureClass
	}{
		{
			name: "nil",
			err:  nil,
			want: Unclassified,
		},
		{
			name: "http 429 text",
			err:  errors.New("server responded with 429 Too Many Requests"),
			want: RateLimited,
		},
		{
			name: "too many requests text",
			err:  errors.New("too many requests from this IP"),
			want: RateLimited,
		},
		{
			name: "jsonrpc 429 code",
			err:  &jsonrpc.RPCError{Code: 429, Message: "rate limit"},
			want: RateLimited,
		},
		{
			name: "blockhash not found",
			err:  errors.New("Transaction simulation failed: Blockhash not found"),
			want: StaleReference,
		},
		{
			name: "block height exceeded",
			err:  errors.New("block height exceeded"),
			want: StaleReference,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: Timeout,
		},
		{
			name: "wrapped deadline exceeded",
			err:  fmt.Errorf("failed to get latest blockhash: %w", context.DeadlineExceeded),
			want: Timeout,
		},
		{
			name: "timed out text",
			err:  errors.New("request timed out"),
			want: Timeout,
		},
		{
			name: "insufficient lamports",
			err:  errors.New("Transfer: insufficient lamports 100, need 200"),
			want: InsufficientFunds,
		},
		{
			name: "insufficient funds",
			err:  errors.New("insufficient funds for fee"),
			want: InsufficientFunds,
		},
		{
			name: "no prior credit",
			err:  errors.New("Attempt to debit an account but found no record of a prior credit."),
			want: InsufficientFunds,
		},
		{
			name: "unknown error",
			err:  errors.New("connection reset by peer"),
			want: Unclassified,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestFailureClassString(t *testing.T) {
	assert.Equal(t, "rate_limited", RateLimited.String())
	assert.Equal(t, "stale_reference", StaleReference.String())
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "insufficient_funds", InsufficientFunds.String())
	assert.Equal(t, "unclassified", Unclassified.String())
}

func TestErrorWrapping(t *testing.T) {
	inner := errors.New("boom")

	var exhausted error = &RetryExhaustedError{Class: Timeout, Attempts: 5, Err: inner}
	assert.ErrorIs(t, exhausted, inner)
	assert.Contains(t, exhausted.Error(), "5 attempts")
	assert.Contains(t, exhausted.Error(), "timeout")

	var fatal error = &FatalError{OwnerID: "run-1", Index: 3, Err: inner}
	assert.ErrorIs(t, fatal, inner)

	var resumable error = &ResumableError{OwnerID: "run-1", NextIndex: 4, Remaining: 100, Err: inner}
	assert.ErrorIs(t, resumable, inner)
}
