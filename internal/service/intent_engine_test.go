package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-intent-engine/internal/adapter/storage/memory"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/core/ports/mocks"
	"payment-intent-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// flakyStore fails the first failUpdates terminal writes.
type flakyStore struct {
	*memory.IntentStore
	mu          sync.Mutex
	failUpdates int
	updateCalls int
}

func (s *flakyStore) Update(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) (bool, error) {
	s.mu.Lock()
	s.updateCalls++
	fail := expected == domain.IntentStatusExecuting && s.failUpdates > 0
	if fail {
		s.failUpdates--
	}
	s.mu.Unlock()
	if fail {
		return false, errors.New("connection reset")
	}
	return s.IntentStore.Update(ctx, intent, expected)
}

type engineFixture struct {
	engine     *IntentEngineImpl
	store      *memory.IntentStore
	analysis   *mocks.MockAnalysisClient
	settlement *mocks.MockSettlementClient
	events     *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.IntentEvent
}

func (l *eventLog) Notify(_ context.Context, e domain.IntentEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newEngineFixture(t *testing.T, capacity int, cfg EngineConfig, snapshots ports.SnapshotProvider) *engineFixture {
	return newEngineFixtureWithRepo(t, capacity, cfg, snapshots, nil)
}

func newEngineFixtureWithRepo(t *testing.T, capacity int, cfg EngineConfig, snapshots ports.SnapshotProvider, wrap func(*memory.IntentStore) ports.IntentRepository) *engineFixture {
	ctrl := gomock.NewController(t)
	analysis := mocks.NewMockAnalysisClient(ctrl)
	settlement := mocks.NewMockSettlementClient(ctrl)
	store := memory.NewIntentStore(capacity)
	events := &eventLog{}
	log := newTestLogger()

	var repo ports.IntentRepository = store
	if wrap != nil {
		repo = wrap(store)
	}

	engine := NewIntentEngine(EngineDeps{
		Repo:       repo,
		Parser:     NewRequestParser(analysis, log),
		Risk:       NewRiskAssessor(analysis, memory.NewRiskCache(16), log),
		Market:     NewMarketEvaluator(25, 2*time.Hour),
		Builder:    NewTransactionBuilder(nil, 20, log),
		Settlement: settlement,
		Snapshots:  snapshots,
		Notifier:   events,
		Clock:      &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Second},
	}, cfg, log)

	return &engineFixture{engine: engine, store: store, analysis: analysis, settlement: settlement, events: events}
}

func (f *engineFixture) analysisDown() {
	f.analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(nil, errors.New("analysis unavailable")).AnyTimes()
	f.analysis.EXPECT().AssessRisk(gomock.Any(), gomock.Any()).Return(nil, errors.New("analysis unavailable")).AnyTimes()
}

func (f *engineFixture) createDefault(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent, err := f.engine.Create(context.Background(), domain.RawPaymentRequest{
		Description: "pay the supplier",
		Amount:      "0.2",
		Recipient:   "0xABC",
	})
	require.NoError(t, err)
	return intent
}

func TestIntentEngine_Create_AnalysisDown(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()

	intent := f.createDefault(t)

	assert.NotEqual(t, uuid.Nil, intent.ID)
	assert.Equal(t, domain.IntentStatusPendingApproval, intent.Status)
	assert.True(t, decimal.RequireFromString("0.2").Equal(intent.Request.Amount))
	assert.Equal(t, "0xABC", intent.Request.Recipient)
	assert.Equal(t, domain.SourceFallback, intent.Request.Source)
	assert.Equal(t, 20, intent.Risk.Score)
	assert.Equal(t, domain.SourceFallback, intent.Risk.Source)
	assert.Equal(t, domain.SourceFallback, intent.Market.Snapshot.Source)
	assert.Equal(t, "200000000000000000", intent.Transaction.ValueMinorUnits.String())
	assert.Nil(t, intent.ExecutionStartedAt)

	stored, err := f.engine.Get(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, stored.ID)
	assert.Equal(t, []domain.EventType{domain.EventIntentCreated}, f.events.types())
}

func TestIntentEngine_Create_UsesLiveSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshots := mocks.NewMockSnapshotProvider(ctrl)
	snapshots.EXPECT().Current().Return(domain.MarketSnapshot{
		Price:       decimal.NewFromInt(2300),
		FeeRateGwei: decimal.NewFromInt(40),
		Congestion:  domain.CongestionHigh,
		Source:      domain.SourceSimulated,
	}, true)

	f := newEngineFixture(t, 10, EngineConfig{}, snapshots)
	f.analysisDown()

	intent := f.createDefault(t)
	assert.Equal(t, domain.TimingDeferred, intent.Market.Timing.Mode)
	assert.Equal(t, domain.CostDelayExecution, intent.Market.CostOptimization)
	assert.Equal(t, gwei(40), intent.Transaction.FeeRate)
}

func TestIntentEngine_Create_CallerCancelled(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string) (*ports.PaymentExtraction, error) {
			assert.NoError(t, ctx.Err(), "stage context must not inherit caller cancellation")
			return nil, errors.New("down")
		},
	)
	f.analysis.EXPECT().AssessRisk(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	intent, err := f.engine.Create(ctx, domain.RawPaymentRequest{Description: "pay"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPendingApproval, intent.Status)
}

func TestIntentEngine_Create_ValidationError(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)

	_, err := f.engine.Create(context.Background(), domain.RawPaymentRequest{})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.events.types())
}

func TestIntentEngine_Create_StoreFull(t *testing.T) {
	f := newEngineFixture(t, 1, EngineConfig{}, nil)
	f.analysisDown()
	f.createDefault(t)

	_, err := f.engine.Create(context.Background(), domain.RawPaymentRequest{Description: "again", Amount: "1", Recipient: "0x1"})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeStorage))
	assert.ErrorIs(t, err, ports.ErrStoreFull)
}

func TestIntentEngine_Execute_Completes(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	gasUsed := uint64(21000)
	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tx domain.TransactionData) (*ports.SettlementReceipt, error) {
			assert.Equal(t, "0xABC", tx.Destination)
			// the engine persisted EXECUTING before submitting
			stored, _ := f.store.GetByID(context.Background(), created.ID)
			assert.Equal(t, domain.IntentStatusExecuting, stored.Status)
			return &ports.SettlementReceipt{Reference: "0xDEADBEEF", GasUsed: &gasUsed}, nil
		},
	)

	intent, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCompleted, intent.Status)
	assert.Equal(t, "0xDEADBEEF", intent.SettlementReference)
	require.NotNil(t, intent.GasUsed)
	assert.Equal(t, gasUsed, *intent.GasUsed)
	require.NotNil(t, intent.ExecutionStartedAt)
	require.NotNil(t, intent.CompletedAt)
	assert.True(t, intent.CreatedAt.Before(*intent.ExecutionStartedAt))
	assert.True(t, intent.ExecutionStartedAt.Before(*intent.CompletedAt))
	assert.Nil(t, intent.FailedAt)
	assert.Nil(t, intent.Error)

	stored, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCompleted, stored.Status)

	assert.Equal(t, []domain.EventType{
		domain.EventIntentCreated,
		domain.EventIntentExecutionStarted,
		domain.EventIntentCompleted,
	}, f.events.types())
}

func TestIntentEngine_Execute_SecondCallRejected(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&ports.SettlementReceipt{Reference: "0x1"}, nil).Times(1)

	_, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	before, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)

	again, err := f.engine.Execute(context.Background(), created.ID)
	assert.Nil(t, again)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "got %v", err)

	after, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.events.types(), 3)
}

func TestIntentEngine_Execute_RetriesOutcomeWrite(t *testing.T) {
	var flaky *flakyStore
	f := newEngineFixtureWithRepo(t, 10, EngineConfig{}, nil, func(s *memory.IntentStore) ports.IntentRepository {
		flaky = &flakyStore{IntentStore: s, failUpdates: finalWriteAttempts - 1}
		return flaky
	})

	f.analysisDown()
	created := f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&ports.SettlementReceipt{Reference: "0xBEEF"}, nil)

	intent, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCompleted, intent.Status)

	stored, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCompleted, stored.Status)
	assert.Equal(t, "0xBEEF", stored.SettlementReference)
	// one CAS to EXECUTING, then every terminal attempt
	assert.Equal(t, 1+finalWriteAttempts, flaky.updateCalls)
}

func TestIntentEngine_Execute_OutcomeWriteExhausted(t *testing.T) {
	f := newEngineFixtureWithRepo(t, 10, EngineConfig{}, nil, func(s *memory.IntentStore) ports.IntentRepository {
		return &flakyStore{IntentStore: s, failUpdates: finalWriteAttempts}
	})
	f.analysisDown()
	created := f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&ports.SettlementReceipt{Reference: "0xBEEF"}, nil)

	_, err := f.engine.Execute(context.Background(), created.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeStorage), "got %v", err)
}

func TestIntentEngine_Execute_NotFound(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)

	_, err := f.engine.Execute(context.Background(), uuid.New())
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	_, err = f.engine.Get(context.Background(), uuid.New())
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}

func TestIntentEngine_Execute_SettlementFails(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, errors.New("execution reverted"))

	intent, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	require.NotNil(t, intent.Error)
	assert.Equal(t, apperror.CodeSettlementFailed, intent.Error.Code)
	assert.Contains(t, intent.Error.Message, "execution reverted")
	assert.NotNil(t, intent.FailedAt)
	assert.Nil(t, intent.CompletedAt)
	assert.Empty(t, intent.SettlementReference)

	assert.Equal(t, domain.EventIntentFailed, f.events.types()[2])
}

func TestIntentEngine_Execute_EmptyReceiptFails(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&ports.SettlementReceipt{}, nil)

	intent, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	assert.Equal(t, apperror.CodeSettlementFailed, intent.Error.Code)
}

func TestIntentEngine_Execute_Timeout(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{SettlementTimeout: 50 * time.Millisecond}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	release := make(chan struct{})
	defer close(release)
	// a backend that ignores cancellation
	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.TransactionData) (*ports.SettlementReceipt, error) {
			<-release
			return &ports.SettlementReceipt{Reference: "0xlate"}, nil
		},
	)

	start := time.Now()
	intent, err := f.engine.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	require.NotNil(t, intent.Error)
	assert.Equal(t, apperror.CodeTimeout, intent.Error.Code)

	stored, _ := f.engine.Get(context.Background(), created.ID)
	assert.Equal(t, domain.IntentStatusFailed, stored.Status)
}

func TestIntentEngine_Execute_CallerCancelledRecordsOutcome(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.TransactionData) (*ports.SettlementReceipt, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	)

	intent, err := f.engine.Execute(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeTimeout, intent.Error.Code)

	stored, _ := f.engine.Get(context.Background(), created.ID)
	assert.Equal(t, domain.IntentStatusFailed, stored.Status)
}

func TestIntentEngine_Execute_ConcurrentSingleSettlement(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	var submits atomic.Int32
	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.TransactionData) (*ports.SettlementReceipt, error) {
			submits.Add(1)
			time.Sleep(20 * time.Millisecond)
			return &ports.SettlementReceipt{Reference: "0xonce"}, nil
		},
	).Times(1)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		rejected atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Execute(context.Background(), created.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.IsCode(err, apperror.CodeInvalidTransition):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), submits.Load())
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), rejected.Load())
}

func TestIntentEngine_ListRecent(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{MaxListLimit: 2}, nil)
	f.analysisDown()
	first := f.createDefault(t)
	second := f.createDefault(t)
	third := f.createDefault(t)

	_, err := f.engine.ListRecent(context.Background(), -1)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	empty, err := f.engine.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	clamped, err := f.engine.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, clamped, 2)
	assert.Equal(t, third.ID, clamped[0].ID)
	assert.Equal(t, second.ID, clamped[1].ID)
	assert.NotEqual(t, first.ID, clamped[1].ID)
}

func TestIntentEngine_Analytics(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)

	empty, err := f.engine.Analytics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.AverageRiskScore)
	assert.Nil(t, empty.LatestMarketSnapshot)

	f.analysisDown()
	a := f.createDefault(t)
	f.createDefault(t)

	f.settlement.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&ports.SettlementReceipt{Reference: "0xok"}, nil)
	_, err = f.engine.Execute(context.Background(), a.ID)
	require.NoError(t, err)

	stats, err := f.engine.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Pending)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 20.0, stats.AverageRiskScore, 1e-9)
	assert.True(t, decimal.RequireFromString("0.2").Equal(stats.TotalCompletedAmount[domain.TokenETH]))
	assert.Len(t, stats.Recent, 2)
}

func TestIntentEngine_Get_ReturnsCopy(t *testing.T) {
	f := newEngineFixture(t, 10, EngineConfig{}, nil)
	f.analysisDown()
	created := f.createDefault(t)

	got, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	got.Status = domain.IntentStatusFailed

	again, _ := f.engine.Get(context.Background(), created.ID)
	assert.Equal(t, domain.IntentStatusPendingApproval, again.Status)
}
