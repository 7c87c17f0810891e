package testhelpers

import (
	"context"
	"time"

	"investor/domain/entities"
	"investor/domain/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockInvestmentRepository is a mock implementation of InvestmentRepository
type MockInvestmentRepository struct {
	mock.Mock
}

func (m *MockInvestmentRepository) Create(ctx context.Context, inv *entities.Investment) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) ListByStatus(ctx context.Context, status entities.InvestmentStatus) ([]*entities.Investment, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) ListPendingCreatedBefore(ctx context.Context, before time.Time) ([]*entities.Investment, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) UpdateIfStatus(ctx context.Context, id uuid.UUID, expected entities.InvestmentStatus, upd entities.InvestmentUpdate) (*entities.Investment, error) {
	args := m.Called(ctx, id, expected, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Investment), args.Error(1)
}

// MockAccrualRunRepository is a mock implementation of AccrualRunRepository
type MockAccrualRunRepository struct {
	mock.Mock
}

func (m *MockAccrualRunRepository) Create(ctx context.Context, run *entities.AccrualRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockAccrualRunRepository) GetLatest(ctx context.Context) (*entities.AccrualRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AccrualRun), args.Error(1)
}

func (m *MockAccrualRunRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*entities.AccrualRun, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AccrualRun), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Initiate(ctx context.Context, phoneNumber string, amount int64) (*entities.PaymentInitiation, error) {
	args := m.Called(ctx, phoneNumber, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentInitiation), args.Error(1)
}

func (m *MockPaymentGateway) QueryStatus(ctx context.Context, correlationID string) (*entities.SettlementStatus, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementStatus), args.Error(1)
}
