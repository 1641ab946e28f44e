package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const intentColumns = `id, status, request, risk_assessment, market_analysis, transaction, created_at,
	execution_started_at, completed_at, failed_at, settlement_reference, gas_used, error_code, error_message`

// IntentRepo implements ports.IntentRepository.
type IntentRepo struct {
	pool Pool
}

// NewIntentRepo creates a new IntentRepo.
func NewIntentRepo(pool Pool) *IntentRepo {
	return &IntentRepo{pool: pool}
}

// Create inserts a new payment intent.
func (r *IntentRepo) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	doc, err := encodeIntent(intent)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_intents (id, status, amount, token, recipient, risk_score,
		request, risk_assessment, market_analysis, transaction, created_at,
		execution_started_at, completed_at, failed_at, settlement_reference, gas_used, error_code, error_message)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		intent.ID, string(intent.Status), intent.Request.Amount.String(), string(intent.Request.Token),
		intent.Request.Recipient, intent.Risk.Score,
		doc.request, doc.risk, doc.market, doc.transaction, intent.CreatedAt,
		intent.ExecutionStartedAt, intent.CompletedAt, intent.FailedAt,
		doc.reference, doc.gasUsed, doc.errorCode, doc.errorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetByID fetches a payment intent by UUID.
func (r *IntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	intent, err := scanIntent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return intent, nil
}

// ListRecent fetches at most limit intents, newest first.
func (r *IntentRepo) ListRecent(ctx context.Context, limit int) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	defer rows.Close()

	intents := make([]domain.PaymentIntent, 0, limit)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment intent rows: %w", err)
	}
	return intents, nil
}

// Update writes the lifecycle fields of intent if the stored status still
// equals expected. Request, assessment and transaction columns are fixed
// at creation.
func (r *IntentRepo) Update(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) (bool, error) {
	doc, err := encodeIntent(intent)
	if err != nil {
		return false, err
	}

	query := `UPDATE payment_intents SET status = $2, execution_started_at = $3, completed_at = $4,
		failed_at = $5, settlement_reference = $6, gas_used = $7, error_code = $8, error_message = $9
		WHERE id = $1 AND status = $10`

	tag, err := r.pool.Exec(ctx, query,
		intent.ID, string(intent.Status), intent.ExecutionStartedAt, intent.CompletedAt, intent.FailedAt,
		doc.reference, doc.gasUsed, doc.errorCode, doc.errorMessage, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("update payment intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats aggregates counts, the risk score sum and completed volume per token.
func (r *IntentRepo) Stats(ctx context.Context) (*domain.IntentStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PENDING_APPROVAL') AS pending,
		COUNT(*) FILTER (WHERE status = 'EXECUTING') AS executing,
		COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
		COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
		COALESCE(SUM(risk_score), 0) AS risk_score_sum
		FROM payment_intents`

	stats := &domain.IntentStats{CompletedVolume: make(map[domain.Token]decimal.Decimal)}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Executing, &stats.Completed, &stats.Failed, &stats.RiskScoreSum,
	)
	if err != nil {
		return nil, fmt.Errorf("get intent stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT token, SUM(amount)::text FROM payment_intents
		WHERE status = 'COMPLETED' GROUP BY token`)
	if err != nil {
		return nil, fmt.Errorf("get completed volume: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, sum string
		if err := rows.Scan(&token, &sum); err != nil {
			return nil, fmt.Errorf("scan completed volume: %w", err)
		}
		amount, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("parse completed volume %q: %w", sum, err)
		}
		stats.CompletedVolume[domain.Token(token)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed volume: %w", err)
	}
	return stats, nil
}

// DeleteTerminalBefore removes COMPLETED and FAILED intents created before cutoff.
func (r *IntentRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM payment_intents WHERE status IN ('COMPLETED', 'FAILED') AND created_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal intents: %w", err)
	}
	return tag.RowsAffected(), nil
}

type intentDoc struct {
	request, risk, market, transaction []byte
	reference                          *string
	gasUsed                            *int64
	errorCode, errorMessage            *string
}

func encodeIntent(intent *domain.PaymentIntent) (*intentDoc, error) {
	doc := &intentDoc{}
	var err error
	if doc.request, err = json.Marshal(intent.Request); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if doc.risk, err = json.Marshal(intent.Risk); err != nil {
		return nil, fmt.Errorf("encode risk assessment: %w", err)
	}
	if doc.market, err = json.Marshal(intent.Market); err != nil {
		return nil, fmt.Errorf("encode market analysis: %w", err)
	}
	if doc.transaction, err = json.Marshal(intent.Transaction); err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	if intent.SettlementReference != "" {
		doc.reference = &intent.SettlementReference
	}
	if intent.GasUsed != nil {
		g := int64(*intent.GasUsed)
		doc.gasUsed = &g
	}
	if intent.Error != nil {
		doc.errorCode = &intent.Error.Code
		doc.errorMessage = &intent.Error.Message
	}
	return doc, nil
}

// scanIntent scans a single row into a PaymentIntent.
func scanIntent(row pgx.Row) (*domain.PaymentIntent, error) {
	var (
		intent                  domain.PaymentIntent
		status                  string
		request, risk, market   []byte
		transaction             []byte
		reference               *string
		gasUsed                 *int64
		errorCode, errorMessage *string
	)
	err := row.Scan(
		&intent.ID, &status, &request, &risk, &market, &transaction, &intent.CreatedAt,
		&intent.ExecutionStartedAt, &intent.CompletedAt, &intent.FailedAt,
		&reference, &gasUsed, &errorCode, &errorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}

	intent.Status = domain.IntentStatus(status)
	if err := json.Unmarshal(request, &intent.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := json.Unmarshal(risk, &intent.Risk); err != nil {
		return nil, fmt.Errorf("decode risk assessment: %w", err)
	}
	if err := json.Unmarshal(market, &intent.Market); err != nil {
		return nil, fmt.Errorf("decode market analysis: %w", err)
	}
	if err := json.Unmarshal(transaction, &intent.Transaction); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if reference != nil {
		intent.SettlementReference = *reference
	}
	if gasUsed != nil {
		g := uint64(*gasUsed)
		intent.GasUsed = &g
	}
	if errorCode != nil {
		intent.Error = &domain.IntentError{Code: *errorCode}
		if errorMessage != nil {
			intent.Error.Message = *errorMessage
		}
	}
	return &intent, nil
}
