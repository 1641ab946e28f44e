package market

import (
	"context"
	"fmt"

	"payment-intent-engine/internal/adapter/chain"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/pkg/units"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Block fullness thresholds for congestion.
const (
	highUtilization = 0.9
	lowUtilization  = 0.3
)

// PriceSource quotes the primary token in USD.
type PriceSource interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// RPCSource samples the fee rate and congestion from a node and the price
// from an oracle.
type RPCSource struct {
	client chain.EthClient
	prices PriceSource
	clock  ports.Clock
	log    zerolog.Logger
}

var _ ports.MarketSource = (*RPCSource)(nil)

// NewRPCSource creates a live market source. prices may be nil.
func NewRPCSource(client chain.EthClient, prices PriceSource, clock ports.Clock, log zerolog.Logger) *RPCSource {
	return &RPCSource{client: client, prices: prices, clock: clock, log: log}
}

// Sample fails only when the node cannot quote a gas price. A missing
// header or price degrades to normal congestion and the default price.
func (s *RPCSource) Sample(ctx context.Context) (domain.MarketSnapshot, error) {
	now := s.clock.Now()
	snap := domain.DefaultMarketSnapshot(now)
	snap.Source = domain.SourceRPC

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market: suggest gas price: %w", err)
	}
	snap.FeeRateGwei = units.WeiToGwei(gasPrice)

	if header, err := s.client.HeaderByNumber(ctx, nil); err != nil {
		s.log.Debug().Err(err).Msg("latest header unavailable, assuming normal congestion")
	} else if header.GasLimit > 0 {
		snap.Congestion = congestionFor(float64(header.GasUsed) / float64(header.GasLimit))
	}

	if s.prices != nil {
		if price, err := s.prices.Price(ctx); err != nil {
			s.log.Debug().Err(err).Msg("price unavailable, using default")
		} else {
			snap.Price = price
		}
	}
	return snap, nil
}

func congestionFor(utilization float64) domain.Congestion {
	switch {
	case utilization > highUtilization:
		return domain.CongestionHigh
	case utilization < lowUtilization:
		return domain.CongestionLow
	default:
		return domain.CongestionNormal
	}
}
