package market

import (
	"context"
	"fmt"
	"math"

	"payment-intent-engine/internal/adapter/chain"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// RPCFeeModel asks the node for a gas estimate and a gas price.
type RPCFeeModel struct {
	client    chain.EthClient
	contracts chain.Contracts
	from      common.Address
	headroom  float64
}

var _ ports.FeeModel = (*RPCFeeModel)(nil)

// NewRPCFeeModel creates a fee model. from is the sending account; the
// estimated gas is multiplied by headroom (values below 1 are ignored).
func NewRPCFeeModel(client chain.EthClient, contracts chain.Contracts, from common.Address, headroom float64) *RPCFeeModel {
	if headroom < 1 {
		headroom = 1
	}
	return &RPCFeeModel{client: client, contracts: contracts, from: from, headroom: headroom}
}

// Estimate returns the gas limit and current fee rate for draft.
func (m *RPCFeeModel) Estimate(ctx context.Context, draft domain.TransactionData) (*ports.FeeEstimate, error) {
	call, err := chain.ResolveCall(draft, m.contracts)
	if err != nil {
		return nil, err
	}

	gas, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  m.from,
		To:    &call.To,
		Value: call.Value,
		Data:  call.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("market: estimate gas: %w", err)
	}

	rate, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("market: suggest gas price: %w", err)
	}

	return &ports.FeeEstimate{
		GasLimit: uint64(math.Ceil(float64(gas) * m.headroom)),
		FeeRate:  rate,
	}, nil
}
