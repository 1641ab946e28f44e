package service

import (
	"context"
	"fmt"
	"math/big"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"
	"payment-intent-engine/pkg/apperror"
	"payment-intent-engine/pkg/units"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionBuilderImpl implements ports.TransactionBuilder.
type TransactionBuilderImpl struct {
	fees         ports.FeeModel
	fallbackGwei int64
	log          zerolog.Logger
}

// NewTransactionBuilder creates a builder. fees may be nil, in which case
// the fallback gas limits and fee rate are used.
func NewTransactionBuilder(fees ports.FeeModel, fallbackGwei int64, log zerolog.Logger) *TransactionBuilderImpl {
	return &TransactionBuilderImpl{fees: fees, fallbackGwei: fallbackGwei, log: log}
}

// Build converts request into backend-ready transaction data. The amount is
// converted to minor units exactly; an amount the token cannot represent is
// a validation error.
func (b *TransactionBuilderImpl) Build(
	ctx context.Context,
	request domain.PaymentRequest,
	risk domain.RiskAssessment,
	snapshot *domain.MarketSnapshot,
) (domain.TransactionData, error) {
	info, ok := request.Token.Info()
	if !ok {
		return domain.TransactionData{}, apperror.Validation(fmt.Sprintf("unsupported token: %s", request.Token))
	}

	value, err := units.ToMinorUnits(request.Amount, info.Decimals)
	if err != nil {
		return domain.TransactionData{}, apperror.Validation(err.Error())
	}

	tx := domain.TransactionData{
		Destination:    request.Recipient,
		Token:          request.Token,
		Payload:        []byte{},
		RiskMitigation: domain.MitigationStandard,
	}
	tx.ValueMinorUnits = value
	if risk.Score > domain.HighRiskThreshold {
		tx.RiskMitigation = domain.MitigationAdditionalVerification
	}

	tx.GasLimit, tx.FeeRate, tx.FeeSource = b.estimate(ctx, tx, info, snapshot)
	tx.EstimatedFee = new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), tx.FeeRate)
	return tx, nil
}

func (b *TransactionBuilderImpl) estimate(
	ctx context.Context,
	draft domain.TransactionData,
	info domain.TokenInfo,
	snapshot *domain.MarketSnapshot,
) (uint64, *big.Int, domain.Source) {
	if b.fees != nil {
		est, err := b.fees.Estimate(ctx, draft)
		if err == nil && est != nil && est.GasLimit > 0 && est.FeeRate != nil && est.FeeRate.Sign() > 0 {
			return est.GasLimit, new(big.Int).Set(est.FeeRate), domain.SourceRPC
		}
		if err == nil {
			err = fmt.Errorf("incomplete fee estimate")
		}
		metrics.CollaboratorFallbacksTotal.WithLabelValues(stageFees).Inc()
		b.log.Warn().Err(err).Str("token", string(draft.Token)).Msg("fee estimation failed, using fallback")
	}

	gas := domain.NativeTransferGas
	if !info.Native {
		gas = domain.TokenTransferGas
	}

	rate := units.GweiToWei(decimal.NewFromInt(b.fallbackGwei))
	if snapshot != nil && snapshot.FeeRateGwei.Sign() > 0 {
		rate = units.GweiToWei(snapshot.FeeRateGwei)
	}
	return gas, rate, domain.SourceFallback
}
