package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"
	"payment-intent-engine/internal/syncutil"
	"payment-intent-engine/internal/traces"
	"payment-intent-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline stage names, used in logs, spans and fallback metrics.
const (
	stageParse  = "parse"
	stageRisk   = "risk"
	stageMarket = "market"
	stageBuild  = "build"
	stageFees   = "fees"
)

// Retry budget for the terminal write after settlement.
const (
	finalWriteAttempts = 3
	finalWriteBackoff  = 50 * time.Millisecond
)

// EngineConfig holds engine timeouts and limits.
type EngineConfig struct {
	StageTimeout      time.Duration
	SettlementTimeout time.Duration
	MaxListLimit      int
}

// EngineDeps are the engine's collaborators. Notifier, Snapshots, Clock and
// NewID are optional.
type EngineDeps struct {
	Repo       ports.IntentRepository
	Parser     ports.RequestParser
	Risk       ports.RiskAssessor
	Market     ports.MarketEvaluator
	Builder    ports.TransactionBuilder
	Settlement ports.SettlementClient
	Snapshots  ports.SnapshotProvider
	Notifier   ports.IntentNotifier
	Clock      ports.Clock
	NewID      func() uuid.UUID
}

// IntentEngineImpl implements ports.IntentEngine.
type IntentEngineImpl struct {
	repo       ports.IntentRepository
	parser     ports.RequestParser
	risk       ports.RiskAssessor
	market     ports.MarketEvaluator
	builder    ports.TransactionBuilder
	settlement ports.SettlementClient
	snapshots  ports.SnapshotProvider
	notifier   ports.IntentNotifier
	clock      ports.Clock
	newID      func() uuid.UUID
	cfg        EngineConfig
	locks      syncutil.ShardedMutex
	log        zerolog.Logger
}

// NewIntentEngine creates a new intent engine.
func NewIntentEngine(deps EngineDeps, cfg EngineConfig, log zerolog.Logger) *IntentEngineImpl {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 10 * time.Second
	}
	if cfg.SettlementTimeout <= 0 {
		cfg.SettlementTimeout = time.Minute
	}
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 100
	}
	e := &IntentEngineImpl{
		repo:       deps.Repo,
		parser:     deps.Parser,
		risk:       deps.Risk,
		market:     deps.Market,
		builder:    deps.Builder,
		settlement: deps.Settlement,
		snapshots:  deps.Snapshots,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		newID:      deps.NewID,
		cfg:        cfg,
		log:        log,
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.newID == nil {
		e.newID = NewUUIDv7
	}
	return e
}

// Create runs Parse → Assess → Evaluate → Build and stores the result as a
// PENDING_APPROVAL intent. The pipeline is detached from caller
// cancellation; each stage has its own timeout. Collaborator failures are
// absorbed by the stages, so only validation and storage errors surface.
func (e *IntentEngineImpl) Create(ctx context.Context, raw domain.RawPaymentRequest) (*domain.PaymentIntent, error) {
	base, span := traces.StartSpan(context.WithoutCancel(ctx), "intent.create")
	defer span.End()

	stageCtx, done := e.stage(base, stageParse)
	request, err := e.parser.Parse(stageCtx, raw)
	done()
	if err != nil {
		traces.RecordError(span, err)
		return nil, asAppError(err)
	}

	stageCtx, done = e.stage(base, stageRisk)
	risk := e.risk.Assess(stageCtx, request)
	done()

	snapshot, live := e.currentSnapshot()
	_, done = e.stage(base, stageMarket)
	market := e.market.Evaluate(request, snapshot)
	done()

	var feeSnapshot *domain.MarketSnapshot
	if live {
		feeSnapshot = &snapshot
	}
	stageCtx, done = e.stage(base, stageBuild)
	tx, err := e.builder.Build(stageCtx, request, risk, feeSnapshot)
	done()
	if err != nil {
		traces.RecordError(span, err)
		return nil, asAppError(err)
	}

	intent := &domain.PaymentIntent{
		ID:          e.newID(),
		Status:      domain.IntentStatusPendingApproval,
		Request:     request,
		Risk:        risk,
		Market:      market,
		Transaction: tx,
		CreatedAt:   e.clock.Now(),
	}
	span.SetAttributes(traces.IntentID(intent.ID.String()), traces.Source(string(request.Source)))

	if err := e.repo.Create(base, intent); err != nil {
		traces.RecordError(span, err)
		e.log.Error().Err(err).Str("intent_id", intent.ID.String()).Msg("failed to store intent")
		return nil, apperror.ErrStorage(err)
	}

	metrics.IntentsCreatedTotal.WithLabelValues(string(request.Source), string(risk.Source)).Inc()
	e.log.Info().
		Str("intent_id", intent.ID.String()).
		Str("amount", request.Amount.String()).
		Str("token", string(request.Token)).
		Str("recipient", request.Recipient).
		Int("risk_score", risk.Score).
		Str("source", string(request.Source)).
		Msg("payment intent created")

	e.notify(base, domain.EventIntentCreated, intent)
	return intent, nil
}

// Execute moves a PENDING_APPROVAL intent to EXECUTING, submits it for
// settlement and records the outcome. Settlement failures and timeouts are
// recorded on the returned intent, not returned as errors.
func (e *IntentEngineImpl) Execute(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	ctx, span := traces.StartSpan(ctx, "intent.execute", traces.IntentID(id.String()))
	defer span.End()

	intent, err := e.beginExecution(ctx, id)
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}
	e.notify(context.WithoutCancel(ctx), domain.EventIntentExecutionStarted, intent)

	settleCtx, cancel := context.WithTimeout(ctx, e.cfg.SettlementTimeout)
	started := time.Now()
	receipt, settleErr := e.submit(settleCtx, intent.Transaction)
	cancel()
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())

	// The final write must land even if the caller has gone away.
	final := context.WithoutCancel(ctx)
	now := e.clock.Now()

	event := domain.EventIntentCompleted
	if settleErr != nil {
		failure, outcome := apperror.ErrSettlement(settleErr), "failed"
		if errors.Is(settleErr, context.DeadlineExceeded) || errors.Is(settleErr, context.Canceled) {
			failure, outcome = apperror.ErrTimeout(settleErr), "timeout"
		}
		_ = intent.Fail(now, failure.Code, settleErr.Error())
		event = domain.EventIntentFailed
		metrics.IntentExecutionsTotal.WithLabelValues(outcome).Inc()
		traces.RecordError(span, failure)
		e.log.Warn().Err(settleErr).Str("intent_id", id.String()).Str("code", failure.Code).Msg("payment execution failed")
	} else {
		_ = intent.Complete(now, receipt.Reference, receipt.GasUsed)
		metrics.IntentExecutionsTotal.WithLabelValues("completed").Inc()
		e.log.Info().Str("intent_id", id.String()).Str("reference", receipt.Reference).Msg("payment executed")
	}

	updated, err := e.recordOutcome(final, intent)
	if err != nil {
		logEvt := e.log.Error().Err(err).
			Str("intent_id", id.String()).
			Str("status", string(intent.Status))
		if intent.SettlementReference != "" {
			logEvt = logEvt.Str("reference", intent.SettlementReference)
		}
		if intent.Error != nil {
			logEvt = logEvt.Str("code", intent.Error.Code)
		}
		logEvt.Msg("failed to record execution outcome")
		return nil, apperror.ErrStorage(err)
	}
	if !updated {
		return nil, apperror.InternalError(fmt.Errorf("intent %s left EXECUTING outside the engine", id))
	}

	e.notify(final, event, intent)
	return intent, nil
}

// recordOutcome writes the terminal state, retrying transient store errors
// a bounded number of times.
func (e *IntentEngineImpl) recordOutcome(ctx context.Context, intent *domain.PaymentIntent) (bool, error) {
	var err error
	for attempt := 1; ; attempt++ {
		var updated bool
		updated, err = e.repo.Update(ctx, intent, domain.IntentStatusExecuting)
		if err == nil {
			return updated, nil
		}
		if attempt == finalWriteAttempts {
			return false, err
		}
		e.log.Warn().Err(err).Str("intent_id", intent.ID.String()).Int("attempt", attempt).Msg("retrying execution outcome write")
		time.Sleep(time.Duration(attempt) * finalWriteBackoff)
	}
}

// beginExecution performs the guarded PENDING_APPROVAL → EXECUTING write.
func (e *IntentEngineImpl) beginExecution(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	unlock := e.locks.Lock(id.String())
	defer unlock()

	intent, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if intent == nil {
		return nil, apperror.ErrNotFound("payment intent")
	}

	if err := intent.BeginExecution(e.clock.Now()); err != nil {
		return nil, asAppError(err)
	}

	ok, err := e.repo.Update(ctx, intent, domain.IntentStatusPendingApproval)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if !ok {
		// Another writer moved it first.
		from := domain.IntentStatusExecuting
		if latest, err := e.repo.GetByID(ctx, id); err == nil && latest != nil {
			from = latest.Status
		}
		return nil, apperror.ErrInvalidTransition(string(from), string(domain.IntentStatusExecuting))
	}
	return intent, nil
}

// submit calls the settlement backend and gives up when ctx ends, even if
// the backend ignores cancellation.
func (e *IntentEngineImpl) submit(ctx context.Context, tx domain.TransactionData) (*ports.SettlementReceipt, error) {
	type result struct {
		receipt *ports.SettlementReceipt
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := e.settlement.Submit(ctx, tx.Clone())
		ch <- result{r, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.receipt == nil || r.receipt.Reference == "" {
			return nil, errors.New("settlement returned no reference")
		}
		return r.receipt, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("settlement timed out: %w", ctx.Err())
	}
}

// Get returns the intent with the given id.
func (e *IntentEngineImpl) Get(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if intent == nil {
		return nil, apperror.ErrNotFound("payment intent")
	}
	return intent, nil
}

// ListRecent returns up to n intents, newest first.
func (e *IntentEngineImpl) ListRecent(ctx context.Context, n int) ([]domain.PaymentIntent, error) {
	if n < 0 {
		return nil, apperror.Validation("limit must not be negative")
	}
	if n == 0 {
		return []domain.PaymentIntent{}, nil
	}
	if n > e.cfg.MaxListLimit {
		n = e.cfg.MaxListLimit
	}
	intents, err := e.repo.ListRecent(ctx, n)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if intents == nil {
		intents = []domain.PaymentIntent{}
	}
	return intents, nil
}

// Analytics summarizes the store and the latest market snapshot.
func (e *IntentEngineImpl) Analytics(ctx context.Context) (*domain.Analytics, error) {
	stats, err := e.repo.Stats(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	recent, err := e.repo.ListRecent(ctx, domain.RecentIntentsInAnalytics)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}

	var latest *domain.MarketSnapshot
	if snap, ok := e.currentSnapshot(); ok {
		latest = &snap
	}

	a := domain.BuildAnalytics(*stats, latest, recent)
	return &a, nil
}

func (e *IntentEngineImpl) currentSnapshot() (domain.MarketSnapshot, bool) {
	if e.snapshots != nil {
		if snap, ok := e.snapshots.Current(); ok {
			return snap, true
		}
	}
	return domain.DefaultMarketSnapshot(e.clock.Now()), false
}

func (e *IntentEngineImpl) stage(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := traces.StartSpan(ctx, "intent.stage."+name, traces.Stage(name))
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	return ctx, func() {
		cancel()
		span.End()
	}
}

func (e *IntentEngineImpl) notify(ctx context.Context, t domain.EventType, intent *domain.PaymentIntent) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, domain.NewIntentEvent(t, intent, e.clock.Now()))
}

// asAppError passes AppErrors through and maps state machine errors.
func asAppError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return apperror.ErrInvalidTransition(string(te.From), string(te.To))
	}
	return apperror.InternalError(err)
}
