package domain

import "math/big"

// RiskMitigation is the verification level applied at execution.
type RiskMitigation string

const (
	MitigationStandard               RiskMitigation = "standard"
	MitigationAdditionalVerification RiskMitigation = "additional_verification"
)

// Fallback gas limits when no fee model is available.
const (
	NativeTransferGas uint64 = 21000
	TokenTransferGas  uint64 = 65000
)

// TransactionData is the backend-ready form of a payment.
// Integer amounts are in minor units: token base units for the value,
// wei for fees.
type TransactionData struct {
	Destination     string         `json:"destination"`
	Token           Token          `json:"token"`
	ValueMinorUnits *big.Int       `json:"value_minor_units"`
	Payload         []byte         `json:"payload,omitempty"`
	GasLimit        uint64         `json:"gas_limit"`
	FeeRate         *big.Int       `json:"fee_rate"`
	EstimatedFee    *big.Int       `json:"estimated_fee"`
	FeeSource       Source         `json:"fee_source"`
	RiskMitigation  RiskMitigation `json:"risk_mitigation"`
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// Clone returns a deep copy.
func (t TransactionData) Clone() TransactionData {
	t.ValueMinorUnits = cloneBig(t.ValueMinorUnits)
	t.FeeRate = cloneBig(t.FeeRate)
	t.EstimatedFee = cloneBig(t.EstimatedFee)
	if t.Payload != nil {
		t.Payload = append([]byte(nil), t.Payload...)
	}
	return t
}
