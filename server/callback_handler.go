package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"investor/domain/entities"
	"investor/domain/interfaces"
	"investor/infrastructure/mpesa"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// The gateway only needs to know the callback was received. Anything else makes it
// redeliver, and redelivery is handled by polling instead.
var callbackAck = map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string       `json:"MerchantRequestID"`
	CheckoutRequestID string       `json:"CheckoutRequestID"`
	ResultCode        *json.Number `json:"ResultCode"`
	ResultDesc        string       `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// CallbackHandler receives STK push results
type CallbackHandler struct {
	reconciliation interfaces.ReconciliationService
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(reconciliation interfaces.ReconciliationService) *CallbackHandler {
	return &CallbackHandler{reconciliation: reconciliation}
}

func (h *CallbackHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WithError(err).Warn("Failed to read M-Pesa callback body")
		writeJSON(w, http.StatusOK, callbackAck)
		return
	}

	result, err := parseCallback(body)
	if err != nil {
		logger.WithError(err).Warn("Ignoring malformed M-Pesa callback")
		writeJSON(w, http.StatusOK, callbackAck)
		return
	}

	logger = logger.WithFields(log.Fields{
		"checkout_request_id": result.CorrelationID,
		"result_code":         result.ResultCode,
	})
	logger.Info("Received M-Pesa callback")

	inv, err := h.reconciliation.ApplyCallback(r.Context(), result)
	switch {
	case errors.Is(err, entities.ErrUnknownCorrelation):
		logger.Warn("M-Pesa callback for unknown checkout request")
	case err != nil:
		logger.WithError(err).Error("Failed to apply M-Pesa callback")
	default:
		logger.WithFields(log.Fields{
			"investment_id": inv.ID,
			"status":        inv.Status,
		}).Info("Applied M-Pesa callback")
	}

	writeJSON(w, http.StatusOK, callbackAck)
}

// parseCallback decodes the gateway's callback body into a settlement result
func parseCallback(body []byte) (entities.SettlementResult, error) {
	var envelope stkCallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return entities.SettlementResult{}, fmt.Errorf("invalid JSON: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb == nil {
		return entities.SettlementResult{}, errors.New("missing Body.stkCallback")
	}
	if cb.CheckoutRequestID == "" {
		return entities.SettlementResult{}, errors.New("missing CheckoutRequestID")
	}
	if cb.ResultCode == nil {
		return entities.SettlementResult{}, errors.New("missing ResultCode")
	}
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return entities.SettlementResult{}, fmt.Errorf("invalid ResultCode %q: %w", cb.ResultCode.String(), err)
	}

	result := entities.SettlementResult{
		CorrelationID:          cb.CheckoutRequestID,
		SecondaryCorrelationID: cb.MerchantRequestID,
		ResultCode:             int(code),
		ResultDescription:      cb.ResultDesc,
	}
	if cb.CallbackMetadata == nil {
		return result, nil
	}

	// Metadata is informational. A value we cannot read is dropped, the payment still resolves.
	for _, item := range cb.CallbackMetadata.Item {
		value := itemString(item.Value)
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(value); err == nil {
				result.Amount = amount.IntPart()
			}
		case "MpesaReceiptNumber":
			result.ExternalReceipt = value
		case "TransactionDate":
			if ts, err := mpesa.ParseTimestamp(value); err == nil {
				result.TransactionDate = &ts
			}
		case "PhoneNumber":
			result.PhoneNumber = value
		}
	}
	return result, nil
}

// itemString renders a metadata value. Numbers are formatted without exponents so
// 20191219102115 and 254708374149 survive as written.
func itemString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return decimal.NewFromFloat(val).String()
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
