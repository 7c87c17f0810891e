package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"investor/domain/entities"
	"investor/domain/testhelpers"
	"investor/infrastructure/mpesa"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler        http.Handler
	reconciliation *testhelpers.MockReconciliationService
	investments    *testhelpers.MockInvestmentService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reconciliation := new(testhelpers.MockReconciliationService)
	investments := new(testhelpers.MockInvestmentService)
	t.Cleanup(func() {
		reconciliation.AssertExpectations(t)
		investments.AssertExpectations(t)
	})
	return &testServer{
		handler:        NewRouter(NewInvestmentHandler(reconciliation, investments), NewCallbackHandler(reconciliation), nil),
		reconciliation: reconciliation,
		investments:    investments,
	}
}

func (s *testServer) do(method, path, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func testInvestment(owner string) *entities.Investment {
	plan := entities.Plan{Amount: 5, RatePerMinute: decimal.NewFromInt(8), CycleDays: 3}
	inv := entities.NewPendingInvestment(owner, plan, "254712345678", testTime)
	correlation := "ws_CO_191220191020363925"
	inv.CorrelationID = &correlation
	return inv
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  errorPayload    `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateInvestment(t *testing.T) {
	s := newTestServer(t)
	inv := testInvestment("user-1")
	s.reconciliation.On("CreatePending", mock.Anything, "user-1", int64(5), "0712345678").Return(inv, nil)

	rec := s.do(http.MethodPost, "/api/investments", "user-1", `{"amount":5,"phoneNumber":" 0712345678 "}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "success", env.Status)

	var body investmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, inv.ID.String(), body.ID)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "8", body.RatePerMinute)
	assert.Equal(t, testTime.Add(72*time.Hour), body.CycleEndsAt)
	require.NotNil(t, body.Transaction.CheckoutRequestID)
	assert.Equal(t, "ws_CO_191220191020363925", *body.Transaction.CheckoutRequestID)
}

func TestCreateInvestment_Errors(t *testing.T) {
	pending := testInvestment("user-1")
	pending.CorrelationID = nil

	tests := []struct {
		name       string
		inv        *entities.Investment
		err        error
		wantStatus int
		wantCode   string
		wantData   bool
	}{
		{"unknown plan", nil, entities.ErrInvalidPlan, http.StatusBadRequest, "invalid_plan", false},
		{"bad phone", nil, fmt.Errorf("wrapped: %w", entities.ErrInvalidPhoneNumber), http.StatusBadRequest, "invalid_phone_number", false},
		{"gateway down", pending, &mpesa.GatewayError{Op: "initiate", Kind: entities.ErrGatewayUnavailable, StatusCode: 503}, http.StatusServiceUnavailable, "gateway_unavailable", true},
		{"gateway rejected", pending, &mpesa.GatewayError{Op: "initiate", Kind: entities.ErrGatewayRejected, StatusCode: 400}, http.StatusBadGateway, "gateway_rejected", true},
		{"store failure", nil, errors.New("connection refused"), http.StatusInternalServerError, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.inv != nil {
				s.reconciliation.On("CreatePending", mock.Anything, "user-1", int64(5), "0712345678").Return(tt.inv, tt.err)
			} else {
				s.reconciliation.On("CreatePending", mock.Anything, "user-1", int64(5), "0712345678").Return(nil, tt.err)
			}

			rec := s.do(http.MethodPost, "/api/investments", "user-1", `{"amount":5,"phoneNumber":"0712345678"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.RequestID)
			if tt.wantData {
				assert.Contains(t, string(env.Data), pending.ID.String())
			} else {
				assert.Empty(t, env.Data)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, env.Error.Message, "connection refused")
			}
		})
	}
}

func TestCreateInvestment_RequestValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/investments", "", `{"amount":5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/investments", "user-1", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode(t, rec).Error.Code)

	big := fmt.Sprintf(`{"amount":5,"phoneNumber":"%s"}`, strings.Repeat("7", maxRequestBytes))
	rec = s.do(http.MethodPost, "/api/investments", "user-1", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetInvestment(t *testing.T) {
	s := newTestServer(t)
	inv := testInvestment("user-1")
	s.investments.On("Get", mock.Anything, inv.ID).Return(inv, nil)

	rec := s.do(http.MethodGet, "/api/investments/"+inv.ID.String(), "user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/investments/"+inv.ID.String(), "someone-else", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/investments/not-a-uuid", "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := uuid.New()
	s.investments.On("Get", mock.Anything, missing).Return(nil, entities.ErrInvestmentNotFound)
	rec = s.do(http.MethodGet, "/api/investments/"+missing.String(), "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryInvestment(t *testing.T) {
	s := newTestServer(t)
	inv := testInvestment("user-1")
	inv.CorrelationID = nil
	retried := testInvestment("user-1")
	retried.ID = inv.ID

	s.investments.On("Get", mock.Anything, inv.ID).Return(inv, nil)
	s.reconciliation.On("RetryInitiation", mock.Anything, inv.ID).Return(retried, nil).Once()

	rec := s.do(http.MethodPost, "/api/investments/"+inv.ID.String()+"/retry", "user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ws_CO_191220191020363925")

	// Not the owner: the retry never reaches the gateway
	rec = s.do(http.MethodPost, "/api/investments/"+inv.ID.String()+"/retry", "user-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	s := newTestServer(t)
	pending := testInvestment("user-1")
	active := testInvestment("user-1")
	active.ID = pending.ID
	active.Status = entities.InvestmentStatusActive

	slow := testInvestment("user-1")
	slowCorrelation := "ws_CO_pending"
	slow.CorrelationID = &slowCorrelation

	s.investments.On("GetByCorrelationID", mock.Anything, "ws_CO_191220191020363925").Return(pending, nil)
	s.investments.On("GetByCorrelationID", mock.Anything, "ws_CO_pending").Return(slow, nil)
	s.investments.On("GetByCorrelationID", mock.Anything, "ws_CO_unknown").Return(nil, entities.ErrUnknownCorrelation)

	s.reconciliation.On("PollStatus", mock.Anything, "ws_CO_191220191020363925").Return(active, nil).Once()
	s.reconciliation.On("PollStatus", mock.Anything, "ws_CO_pending").
		Return(nil, &mpesa.GatewayError{Op: "query", Kind: entities.ErrPaymentPending, Code: "500.001.1001"}).Once()

	rec := s.do(http.MethodGet, "/api/investments/payment-status/ws_CO_191220191020363925", "user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	rec = s.do(http.MethodGet, "/api/investments/payment-status/ws_CO_pending", "user-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "payment_pending", decode(t, rec).Error.Code)

	rec = s.do(http.MethodGet, "/api/investments/payment-status/ws_CO_unknown", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentStatus_OtherOwnerNeverPolls(t *testing.T) {
	s := newTestServer(t)
	inv := testInvestment("user-1")
	s.investments.On("GetByCorrelationID", mock.Anything, "ws_CO_191220191020363925").Return(inv, nil)

	rec := s.do(http.MethodGet, "/api/investments/payment-status/ws_CO_191220191020363925", "user-2", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	s.reconciliation.AssertNotCalled(t, "PollStatus", mock.Anything, mock.Anything)
}

func TestListAndStats(t *testing.T) {
	s := newTestServer(t)
	a, b := testInvestment("user-1"), testInvestment("user-1")
	s.investments.On("ListByOwner", mock.Anything, "user-1").Return([]*entities.Investment{a, b}, nil)
	s.investments.On("ListByOwner", mock.Anything, "user-2").Return([]*entities.Investment{}, nil)
	s.investments.On("Stats", mock.Anything, "user-1").Return(&entities.InvestmentStats{TotalInvested: 10, ActiveCount: 2}, nil)

	rec := s.do(http.MethodGet, "/api/investments", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []investmentResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.Len(t, list, 2)

	rec = s.do(http.MethodGet, "/api/investments", "user-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec).Data))

	rec = s.do(http.MethodGet, "/api/investments/stats", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats entities.InvestmentStats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.Equal(t, int64(10), stats.TotalInvested)
	assert.Equal(t, 2, stats.ActiveCount)
}

func TestPlans(t *testing.T) {
	s := newTestServer(t)
	s.investments.On("Plans").Return(entities.DefaultPlans())

	rec := s.do(http.MethodGet, "/api/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []planResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &plans))
	require.Len(t, plans, len(entities.DefaultPlans()))
	assert.Equal(t, int64(1), plans[0].Amount)
	assert.Equal(t, int64(21600), plans[0].FinalReturns)
}

func TestHealth(t *testing.T) {
	healthy := NewRouter(nil, nil, func(ctx context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	unhealthy := NewRouter(nil, nil, func(ctx context.Context) error { return errors.New("database unreachable") })
	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
