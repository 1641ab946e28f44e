// Package chain holds the EVM plumbing shared by settlement, market
// sampling and fee estimation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"payment-intent-engine/internal/core/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrInvalidAddress = errors.New("chain: invalid address")
	ErrNoContract     = errors.New("chain: no contract configured for token")
	ErrRPCConnection  = errors.New("chain: RPC connection failed")
)

// EthClient abstracts the go-ethereum client for testing.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

var _ EthClient = (*ethclient.Client)(nil)

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
	}
	return client, nil
}

// erc20ABI is the minimal ABI needed to move tokens.
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse ERC20 ABI: %v", err))
	}
	return parsed
}

// TransferCalldata encodes an ERC-20 transfer(to, amount) call.
func TransferCalldata(to common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, amount)
}

// ParseAddress validates a hex account address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// Contracts maps non-native tokens to their ERC-20 contract.
type Contracts map[domain.Token]common.Address

// NewContracts builds a registry from symbol -> address config. Symbols are
// matched case-insensitively against the supported tokens.
func NewContracts(cfg map[string]string) (Contracts, error) {
	out := make(Contracts, len(cfg))
	for symbol, addr := range cfg {
		token, ok := domain.ParseToken(symbol)
		if !ok {
			return nil, fmt.Errorf("chain: unsupported token %q in contract registry", symbol)
		}
		a, err := ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("chain: contract for %s: %w", token, err)
		}
		out[token] = a
	}
	return out, nil
}

// Call is the on-chain shape of a payment: the account called, the native
// value attached and the calldata.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// ResolveCall turns transaction data into the call that settles it. Native
// tokens are a plain value transfer; other tokens call the ERC-20 contract.
func ResolveCall(tx domain.TransactionData, contracts Contracts) (Call, error) {
	to, err := ParseAddress(tx.Destination)
	if err != nil {
		return Call{}, err
	}
	if tx.ValueMinorUnits == nil || tx.ValueMinorUnits.Sign() <= 0 {
		return Call{}, fmt.Errorf("chain: non-positive value")
	}

	info, ok := tx.Token.Info()
	if !ok {
		return Call{}, fmt.Errorf("chain: unsupported token %s", tx.Token)
	}
	if info.Native {
		return Call{To: to, Value: new(big.Int).Set(tx.ValueMinorUnits), Data: tx.Payload}, nil
	}

	contract, ok := contracts[tx.Token]
	if !ok {
		return Call{}, fmt.Errorf("%w: %s", ErrNoContract, tx.Token)
	}
	data, err := TransferCalldata(to, tx.ValueMinorUnits)
	if err != nil {
		return Call{}, fmt.Errorf("chain: pack transfer: %w", err)
	}
	return Call{To: contract, Value: big.NewInt(0), Data: data}, nil
}
