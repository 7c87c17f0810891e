package testhelpers

import (
	"context"
	"time"

	"investor/domain/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccrualService is a mock implementation of AccrualService
type MockAccrualService struct {
	mock.Mock
}

func (m *MockAccrualService) Accrue(ctx context.Context, inv *entities.Investment, now time.Time) (*entities.Investment, error) {
	args := m.Called(ctx, inv, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockAccrualService) AccrueByID(ctx context.Context, id uuid.UUID, now time.Time) (*entities.Investment, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

// MockReconciliationService is a mock implementation of ReconciliationService
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) CreatePending(ctx context.Context, ownerID string, planAmount int64, phoneNumber string) (*entities.Investment, error) {
	args := m.Called(ctx, ownerID, planAmount, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockReconciliationService) RetryInitiation(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockReconciliationService) ApplyCallback(ctx context.Context, result entities.SettlementResult) (*entities.Investment, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockReconciliationService) PollStatus(ctx context.Context, correlationID string) (*entities.Investment, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockReconciliationService) ReconcilePending(ctx context.Context, pollAfter, expireAfter time.Duration) (*entities.ReconciliationSummary, error) {
	args := m.Called(ctx, pollAfter, expireAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReconciliationSummary), args.Error(1)
}

// MockInvestmentService is a mock implementation of InvestmentService
type MockInvestmentService struct {
	mock.Mock
}

func (m *MockInvestmentService) Get(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockInvestmentService) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockInvestmentService) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Investment), args.Error(1)
}

func (m *MockInvestmentService) Stats(ctx context.Context, ownerID string) (*entities.InvestmentStats, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.InvestmentStats), args.Error(1)
}

func (m *MockInvestmentService) Plans() []entities.Plan {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]entities.Plan)
}
