package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"investor/domain/entities"
	"investor/domain/events"
	"investor/domain/testhelpers"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reconciliationFixture struct {
	repo      *testhelpers.MemoryInvestmentRepository
	gateway   *testhelpers.MockPaymentGateway
	publisher *testhelpers.RecordingEventPublisher
	clock     *fixedClock
	svc       *reconciliationService
}

func setupReconciliation() *reconciliationFixture {
	f := &reconciliationFixture{
		repo:      testhelpers.NewMemoryInvestmentRepository(),
		gateway:   &testhelpers.MockPaymentGateway{},
		publisher: &testhelpers.RecordingEventPublisher{},
		clock:     &fixedClock{t: testEpoch},
	}
	f.svc = NewReconciliationService(f.repo, f.gateway, testPlanTable(), f.publisher, f.clock.Now).(*reconciliationService)
	return f
}

func successCallback() entities.SettlementResult {
	txDate := testEpoch.Add(30 * time.Second)
	return entities.SettlementResult{
		CorrelationID:          TestCorrelationID,
		SecondaryCorrelationID: TestMerchantID,
		ResultCode:             0,
		ResultDescription:      "The service request is processed successfully.",
		ExternalReceipt:        TestReceipt,
		Amount:                 1,
		PhoneNumber:            TestPhoneNumber,
		TransactionDate:        &txDate,
	}
}

func TestReconciliationService_CreatePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects unknown plan before writing anything", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()

		inv, err := f.svc.CreatePending(ctx, TestOwnerID, 7, "0712345678")

		assert.Nil(t, inv)
		assert.ErrorIs(t, err, entities.ErrInvalidPlan)
		stored, _ := f.repo.ListByOwner(ctx, TestOwnerID)
		assert.Empty(t, stored)
		f.gateway.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid phone number", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()

		inv, err := f.svc.CreatePending(ctx, TestOwnerID, 1, "12345")

		assert.Nil(t, inv)
		assert.ErrorIs(t, err, entities.ErrInvalidPhoneNumber)
		stored, _ := f.repo.ListByOwner(ctx, TestOwnerID)
		assert.Empty(t, stored)
	})

	t.Run("stores pending record with correlation ids", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		f.gateway.On("Initiate", mock.Anything, TestPhoneNumber, int64(5)).Return(&entities.PaymentInitiation{
			CorrelationID:          TestCorrelationID,
			SecondaryCorrelationID: TestMerchantID,
			CustomerMessage:        "Success. Request accepted for processing",
		}, nil)

		inv, err := f.svc.CreatePending(ctx, TestOwnerID, 5, "0712 345 678")
		require.NoError(t, err)

		assert.Equal(t, entities.InvestmentStatusPending, inv.Status)
		assert.Equal(t, int64(5), inv.PlanAmount())
		assert.Equal(t, "8", inv.Plan.RatePerMinute.String())
		assert.Equal(t, TestPhoneNumber, inv.PhoneNumber)
		require.NotNil(t, inv.CorrelationID)
		assert.Equal(t, TestCorrelationID, *inv.CorrelationID)
		require.NotNil(t, inv.SecondaryCorrelationID)
		assert.Equal(t, TestMerchantID, *inv.SecondaryCorrelationID)
		assert.Equal(t, int64(0), inv.AccruedReturns)
		assert.Len(t, f.publisher.Events(events.EventTypeInvestmentCreated), 1)
		f.gateway.AssertExpectations(t)
	})

	t.Run("gateway failure leaves record pending and retryable", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		f.gateway.On("Initiate", mock.Anything, TestPhoneNumber, int64(1)).
			Return(nil, fmt.Errorf("stk push: %w", entities.ErrGatewayUnavailable)).Once()

		inv, err := f.svc.CreatePending(ctx, TestOwnerID, 1, "+254712345678")

		require.Error(t, err)
		assert.ErrorIs(t, err, entities.ErrGatewayUnavailable)
		assert.True(t, entities.IsRetryable(err))
		require.NotNil(t, inv)
		assert.Equal(t, entities.InvestmentStatusPending, inv.Status)
		assert.False(t, inv.HasCorrelation())

		stored, err := f.repo.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, entities.InvestmentStatusPending, stored.Status)

		f.gateway.On("Initiate", mock.Anything, TestPhoneNumber, int64(1)).Return(&entities.PaymentInitiation{
			CorrelationID: TestCorrelationID,
		}, nil).Once()

		retried, err := f.svc.RetryInitiation(ctx, inv.ID)
		require.NoError(t, err)
		require.True(t, retried.HasCorrelation())
		assert.Equal(t, TestCorrelationID, *retried.CorrelationID)

		// A record that already has a correlation id is not re-prompted
		again, err := f.svc.RetryInitiation(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, TestCorrelationID, *again.CorrelationID)
		f.gateway.AssertNumberOfCalls(t, "Initiate", 2)
	})

	t.Run("retry of unknown investment", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()

		_, err := f.svc.RetryInitiation(ctx, newPendingInvestment("", testEpoch).ID)
		assert.ErrorIs(t, err, entities.ErrInvestmentNotFound)
	})
}

func TestReconciliationService_ApplyCallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success activates and stamps the record", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		f.repo.Put(newPendingInvestment(TestCorrelationID, testEpoch))
		f.clock.Advance(time.Minute)

		inv, err := f.svc.ApplyCallback(ctx, successCallback())
		require.NoError(t, err)

		assert.Equal(t, entities.InvestmentStatusActive, inv.Status)
		require.NotNil(t, inv.ExternalReceipt)
		assert.Equal(t, TestReceipt, *inv.ExternalReceipt)
		assert.Equal(t, testEpoch.Add(time.Minute), inv.LastAccrualAt)
		require.NotNil(t, inv.ActivatedAt)
		require.NotNil(t, inv.SettledAt)
		assert.Equal(t, testEpoch.Add(30*time.Second), *inv.SettledAt)
		require.NotNil(t, inv.ResultCode)
		assert.Equal(t, 0, *inv.ResultCode)
		assert.Equal(t, int64(0), inv.AccruedReturns)
		assert.Len(t, f.publisher.Events(events.EventTypeInvestmentActivated), 1)
	})

	t.Run("duplicate success callback activates once", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		plan := basicPlan()
		plan.ActivationBonus = 250
		pending := newPendingInvestment(TestCorrelationID, testEpoch)
		pending.Plan = plan
		f.repo.Put(pending)

		first, err := f.svc.ApplyCallback(ctx, successCallback())
		require.NoError(t, err)
		second, err := f.svc.ApplyCallback(ctx, successCallback())
		require.NoError(t, err)

		assert.Equal(t, entities.InvestmentStatusActive, first.Status)
		assert.Equal(t, entities.InvestmentStatusActive, second.Status)
		assert.Equal(t, int64(250), second.AccruedReturns)
		assert.Len(t, f.publisher.Events(events.EventTypeInvestmentActivated), 1)
		assert.Equal(t, 1, f.repo.UpdateCount())
	})

	t.Run("cancelled payment fails the record", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		f.repo.Put(newPendingInvestment(TestCorrelationID, testEpoch))

		inv, err := f.svc.ApplyCallback(ctx, entities.SettlementResult{
			CorrelationID:     TestCorrelationID,
			ResultCode:        1032,
			ResultDescription: "Request cancelled by user",
		})
		require.NoError(t, err)

		assert.Equal(t, entities.InvestmentStatusFailed, inv.Status)
		assert.Equal(t, int64(0), inv.AccruedReturns)
		require.NotNil(t, inv.ResultCode)
		assert.Equal(t, 1032, *inv.ResultCode)
		require.NotNil(t, inv.ResultDescription)
		assert.Equal(t, "Request cancelled by user", *inv.ResultDescription)
		assert.Nil(t, inv.ExternalReceipt)
		assert.Len(t, f.publisher.Events(events.EventTypeInvestmentFailed), 1)

		// A late success for the same payment changes nothing
		late, err := f.svc.ApplyCallback(ctx, successCallback())
		require.NoError(t, err)
		assert.Equal(t, entities.InvestmentStatusFailed, late.Status)
		assert.Empty(t, f.publisher.Events(events.EventTypeInvestmentActivated))
	})

	t.Run("unknown correlation", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()

		_, err := f.svc.ApplyCallback(ctx, successCallback())
		assert.ErrorIs(t, err, entities.ErrUnknownCorrelation)

		_, err = f.svc.ApplyCallback(ctx, entities.SettlementResult{})
		assert.ErrorIs(t, err, entities.ErrUnknownCorrelation)
	})

	t.Run("completed record is a no-op", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		done := newActiveInvestment(basicPlan(), testEpoch)
		done.Status = entities.InvestmentStatusCompleted
		done.AccruedReturns = 21600
		f.repo.Put(done)

		inv, err := f.svc.ApplyCallback(ctx, successCallback())
		require.NoError(t, err)
		assert.Equal(t, entities.InvestmentStatusCompleted, inv.Status)
		assert.Equal(t, int64(21600), inv.AccruedReturns)
		assert.Equal(t, 0, f.repo.UpdateCount())
	})
}

func TestReconciliationService_LateSuccessOnFailedInvestment(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	f := setupReconciliation()
	failed := newPendingInvestment(TestCorrelationID, testEpoch)
	failed.Status = entities.InvestmentStatusFailed
	f.repo.Put(failed)

	inv, err := f.svc.ApplyCallback(context.Background(), successCallback())
	require.NoError(t, err)

	assert.Equal(t, entities.InvestmentStatusFailed, inv.Status)
	assert.Nil(t, inv.ExternalReceipt)
	assert.Equal(t, 0, f.repo.UpdateCount())
	assert.Empty(t, f.publisher.Events(events.EventTypeInvestmentActivated))

	var warned *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Data["investmentID"] == failed.ID {
			warned = e
		}
	}
	require.NotNil(t, warned, "late success must be logged at warn level")
	assert.Equal(t, TestReceipt, warned.Data["receipt"])
	assert.Equal(t, int64(1), warned.Data["amount"])
	assert.Equal(t, events.SourceCallback, warned.Data["source"])
}

func TestReconciliationService_PollStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("concurrent polls activate once", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		plan := basicPlan()
		plan.ActivationBonus = 40
		pending := newPendingInvestment(TestCorrelationID, testEpoch)
		pending.Plan = plan
		f.repo.Put(pending)
		f.gateway.On("QueryStatus", mock.Anything, TestCorrelationID).Return(&entities.SettlementStatus{
			CorrelationID:     TestCorrelationID,
			ResultCode:        0,
			ResultDescription: "The service request is processed successfully.",
		}, nil)

		var wg sync.WaitGroup
		results := make([]*entities.Investment, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				inv, err := f.svc.PollStatus(ctx, TestCorrelationID)
				assert.NoError(t, err)
				results[i] = inv
			}(i)
		}
		wg.Wait()

		for _, inv := range results {
			require.NotNil(t, inv)
			assert.Equal(t, entities.InvestmentStatusActive, inv.Status)
			assert.Equal(t, int64(40), inv.AccruedReturns)
		}
		assert.Len(t, f.publisher.Events(events.EventTypeInvestmentActivated), 1)
		assert.Equal(t, 1, f.repo.UpdateCount())
	})

	t.Run("gateway errors are retryable and keep the record pending", func(t *testing.T) {
		t.Parallel()
		for _, gatewayErr := range []error{entities.ErrGatewayUnavailable, entities.ErrPaymentPending} {
			f := setupReconciliation()
			f.repo.Put(newPendingInvestment(TestCorrelationID, testEpoch))
			f.gateway.On("QueryStatus", mock.Anything, TestCorrelationID).Return(nil, gatewayErr)

			inv, err := f.svc.PollStatus(ctx, TestCorrelationID)

			assert.Nil(t, inv)
			assert.ErrorIs(t, err, gatewayErr)
			assert.True(t, entities.IsRetryable(err))
			stored, _ := f.repo.GetByCorrelationID(ctx, TestCorrelationID)
			assert.Equal(t, entities.InvestmentStatusPending, stored.Status)
		}
	})

	t.Run("failed result code fails the record", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		f.repo.Put(newPendingInvestment(TestCorrelationID, testEpoch))
		f.gateway.On("QueryStatus", mock.Anything, TestCorrelationID).Return(&entities.SettlementStatus{
			CorrelationID:     TestCorrelationID,
			ResultCode:        1037,
			ResultDescription: "DS timeout user cannot be reached",
		}, nil)

		inv, err := f.svc.PollStatus(ctx, TestCorrelationID)
		require.NoError(t, err)
		assert.Equal(t, entities.InvestmentStatusFailed, inv.Status)
		assert.Equal(t, 1037, *inv.ResultCode)
	})

	t.Run("completed record does not call the gateway", func(t *testing.T) {
		t.Parallel()
		f := setupReconciliation()
		done := newActiveInvestment(basicPlan(), testEpoch)
		done.Status = entities.InvestmentStatusCompleted
		f.repo.Put(done)

		inv, err := f.svc.PollStatus(ctx, TestCorrelationID)
		require.NoError(t, err)
		assert.Equal(t, entities.InvestmentStatusCompleted, inv.Status)
		f.gateway.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything)
	})
}

func TestReconciliationService_ReconcilePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupReconciliation()
	now := testEpoch.Add(time.Hour)
	f.clock.t = now

	paid := newPendingInvestment("ws_CO_paid", now.Add(-5*time.Minute))
	cancelled := newPendingInvestment("ws_CO_cancelled", now.Add(-10*time.Minute))
	neverPrompted := newPendingInvestment("", now.Add(-45*time.Minute))
	unreachable := newPendingInvestment("ws_CO_unreachable", now.Add(-50*time.Minute))
	abandoned := newPendingInvestment("ws_CO_abandoned", now.Add(-55*time.Minute))
	fresh := newPendingInvestment("ws_CO_fresh", now.Add(-30*time.Second))
	for _, inv := range []*entities.Investment{paid, cancelled, neverPrompted, unreachable, abandoned, fresh} {
		f.repo.Put(inv)
	}

	f.gateway.On("QueryStatus", mock.Anything, "ws_CO_paid").
		Return(&entities.SettlementStatus{CorrelationID: "ws_CO_paid", ResultCode: 0}, nil)
	f.gateway.On("QueryStatus", mock.Anything, "ws_CO_cancelled").
		Return(&entities.SettlementStatus{CorrelationID: "ws_CO_cancelled", ResultCode: 1032, ResultDescription: "Request cancelled by user"}, nil)
	f.gateway.On("QueryStatus", mock.Anything, "ws_CO_unreachable").
		Return(nil, entities.ErrGatewayUnavailable)
	f.gateway.On("QueryStatus", mock.Anything, "ws_CO_abandoned").
		Return(nil, fmt.Errorf("query: %w", entities.ErrGatewayRejected))

	summary, err := f.svc.ReconcilePending(ctx, 2*time.Minute, 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Scanned)
	assert.Equal(t, 1, summary.Activated)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 1, summary.StillOpen)
	assert.Equal(t, 1, summary.Errors)

	statusOf := func(inv *entities.Investment) entities.InvestmentStatus {
		stored, err := f.repo.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		return stored.Status
	}
	assert.Equal(t, entities.InvestmentStatusActive, statusOf(paid))
	assert.Equal(t, entities.InvestmentStatusFailed, statusOf(cancelled))
	assert.Equal(t, entities.InvestmentStatusFailed, statusOf(neverPrompted))
	assert.Equal(t, entities.InvestmentStatusPending, statusOf(unreachable))
	assert.Equal(t, entities.InvestmentStatusFailed, statusOf(abandoned))
	assert.Equal(t, entities.InvestmentStatusPending, statusOf(fresh))

	expired, _ := f.repo.GetByID(ctx, neverPrompted.ID)
	require.NotNil(t, expired.ResultDescription)
	assert.Equal(t, expiredDescription, *expired.ResultDescription)
	f.gateway.AssertNotCalled(t, "QueryStatus", mock.Anything, "ws_CO_fresh")
}

func TestInvestmentLifecycleScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupReconciliation()
	f.gateway.On("Initiate", mock.Anything, TestPhoneNumber, int64(1)).
		Return(&entities.PaymentInitiation{CorrelationID: TestCorrelationID, SecondaryCorrelationID: TestMerchantID}, nil)
	accrual := NewAccrualService(f.repo, f.publisher)

	inv, err := f.svc.CreatePending(ctx, TestOwnerID, 1, "0712345678")
	require.NoError(t, err)

	inv, err = f.svc.ApplyCallback(ctx, successCallback())
	require.NoError(t, err)
	require.Equal(t, entities.InvestmentStatusActive, inv.Status)

	inv, err = accrual.Accrue(ctx, inv, testEpoch.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(50), inv.AccruedReturns)

	inv, err = accrual.Accrue(ctx, inv, testEpoch.Add(72*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entities.InvestmentStatusCompleted, inv.Status)
	assert.Equal(t, int64(21600), inv.AccruedReturns)
}
