// Package settlement submits built transactions to a settlement backend:
// a live EVM network or an in-process simulator.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"payment-intent-engine/internal/adapter/chain"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/traces"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrInvalidPrivateKey = errors.New("settlement: invalid private key")
	ErrReverted          = errors.New("settlement: transaction reverted")
)

// SubmitError wraps a failure at one step of submission.
type SubmitError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("settlement: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("settlement: %s failed: %v", e.Op, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// EVMConfig configures EVM settlement.
type EVMConfig struct {
	PrivateKey     string // hex, with or without 0x
	ChainID        int64
	Contracts      chain.Contracts
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// EVM signs transactions with a hot key and waits for them to be mined.
type EVM struct {
	client       chain.EthClient
	key          *ecdsa.PrivateKey
	address      common.Address
	signer       types.Signer
	contracts    chain.Contracts
	confirmAfter time.Duration
	pollEvery    time.Duration
	log          zerolog.Logger

	// sendMu holds from nonce lookup until the node accepts the transaction.
	sendMu sync.Mutex
}

var _ ports.SettlementClient = (*EVM)(nil)

// NewEVM creates an EVM settlement client.
func NewEVM(client chain.EthClient, cfg EVMConfig, log zerolog.Logger) (*EVM, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("settlement: chain ID required")
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	return &EVM{
		client:       client,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		signer:       types.NewEIP155Signer(big.NewInt(cfg.ChainID)),
		contracts:    cfg.Contracts,
		confirmAfter: cfg.ConfirmTimeout,
		pollEvery:    cfg.PollInterval,
		log:          log,
	}, nil
}

// ParsePrivateKey decodes a 32-byte hex key.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	k := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if len(k) != 64 {
		return nil, fmt.Errorf("%w: must be 64 hex characters", ErrInvalidPrivateKey)
	}
	key, err := crypto.HexToECDSA(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key, nil
}

// Address is the account transactions are sent from.
func (s *EVM) Address() common.Address {
	return s.address
}

// Submit signs, sends and confirms tx. The built fee rate and gas limit are
// used when present; otherwise the node is asked.
func (s *EVM) Submit(ctx context.Context, tx domain.TransactionData) (*ports.SettlementReceipt, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.evm.submit", traces.Token(string(tx.Token)))
	defer span.End()

	receipt, err := s.submit(ctx, tx)
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("tx.hash", receipt.Reference))
	return receipt, nil
}

func (s *EVM) submit(ctx context.Context, tx domain.TransactionData) (*ports.SettlementReceipt, error) {
	call, err := chain.ResolveCall(tx, s.contracts)
	if err != nil {
		return nil, &SubmitError{Op: "resolve", Err: err}
	}

	signed, err := s.send(ctx, tx, call)
	if err != nil {
		return nil, err
	}
	return s.waitForReceipt(ctx, signed.Hash())
}

// send signs and broadcasts call. Sends are serialized so concurrent
// settlements never sign with the same pending nonce.
func (s *EVM) send(ctx context.Context, tx domain.TransactionData, call chain.Call) (*types.Transaction, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, &SubmitError{Op: "nonce", Err: err}
	}

	gasPrice := tx.FeeRate
	if gasPrice == nil || gasPrice.Sign() <= 0 {
		if gasPrice, err = s.client.SuggestGasPrice(ctx); err != nil {
			return nil, &SubmitError{Op: "gas_price", Err: err}
		}
	}

	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		to := call.To
		gasLimit, err = s.client.EstimateGas(ctx, ethereum.CallMsg{From: s.address, To: &to, Value: call.Value, Data: call.Data})
		if err != nil {
			return nil, &SubmitError{Op: "estimate_gas", Err: err}
		}
	}

	unsigned := types.NewTransaction(nonce, call.To, call.Value, gasLimit, gasPrice, call.Data)
	signed, err := types.SignTx(unsigned, s.signer, s.key)
	if err != nil {
		return nil, &SubmitError{Op: "sign", Err: err}
	}

	hash := signed.Hash().Hex()
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return nil, &SubmitError{Op: "send", TxHash: hash, Err: err}
	}
	s.log.Info().
		Str("tx_hash", hash).
		Uint64("nonce", nonce).
		Str("to", call.To.Hex()).
		Str("token", string(tx.Token)).
		Msg("transaction sent")

	return signed, nil
}

// waitForReceipt polls until the transaction is mined, the confirm window
// closes or ctx ends. Timeouts surface as context errors.
func (s *EVM) waitForReceipt(ctx context.Context, hash common.Hash) (*ports.SettlementReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.confirmAfter)
	defer cancel()

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &SubmitError{Op: "confirm", TxHash: hash.Hex(), Err: ctx.Err()}

		case <-ticker.C:
			receipt, err := s.client.TransactionReceipt(ctx, hash)
			if err != nil {
				// not mined yet
				continue
			}

			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, &SubmitError{Op: "confirm", TxHash: hash.Hex(), Err: ErrReverted}
			}

			gasUsed := receipt.GasUsed
			out := &ports.SettlementReceipt{Reference: hash.Hex(), GasUsed: &gasUsed}
			if receipt.BlockNumber != nil {
				block := receipt.BlockNumber.Uint64()
				out.BlockNumber = &block
			}
			return out, nil
		}
	}
}
