// Package chaintest provides an in-memory chain.EthClient for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is a scriptable EthClient. Zero values answer with sensible
// defaults; set the Err fields to force failures.
type Client struct {
	mu sync.Mutex

	Nonce       uint64
	GasPrice    *big.Int
	GasEstimate uint64
	Header      *types.Header

	NonceErr    error
	GasPriceErr error
	EstimateErr error
	SendErr     error
	HeaderErr   error

	// PendingPolls is how many receipt lookups report not-found before
	// the receipt appears.
	PendingPolls  int
	ReceiptStatus uint64
	GasUsed       uint64
	BlockNumber   int64
	// SendDelay is slept before a send is accepted, outside the lock.
	SendDelay time.Duration

	Sent      []*types.Transaction
	Estimated []ethereum.CallMsg
	polls     int
	closed    bool
}

// NewClient returns a client that mines every transaction successfully.
func NewClient() *Client {
	return &Client{
		GasPrice:      big.NewInt(20_000_000_000),
		GasEstimate:   21000,
		ReceiptStatus: types.ReceiptStatusSuccessful,
		GasUsed:       21000,
		BlockNumber:   100,
	}
}

func (c *Client) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Nonce, c.NonceErr
}

func (c *Client) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GasPriceErr != nil {
		return nil, c.GasPriceErr
	}
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Client) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Estimated = append(c.Estimated, call)
	return c.GasEstimate, c.EstimateErr
}

func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	delay := c.SendDelay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, tx)
	c.Nonce++
	return nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.polls < c.PendingPolls {
		c.polls++
		return nil, ethereum.NotFound
	}
	for _, tx := range c.Sent {
		if tx.Hash() == hash {
			return &types.Receipt{
				Status:      c.ReceiptStatus,
				TxHash:      hash,
				GasUsed:     c.GasUsed,
				BlockNumber: big.NewInt(c.BlockNumber),
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (c *Client) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.HeaderErr != nil {
		return nil, c.HeaderErr
	}
	if c.Header == nil {
		return nil, errors.New("no header")
	}
	return c.Header, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SentTransactions returns a copy of every transaction sent so far.
func (c *Client) SentTransactions() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.Sent...)
}
