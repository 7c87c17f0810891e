package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"investor/domain/entities"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
	Data   any          `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successResponse{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorWithData(w, r, status, code, message, nil)
}

func writeErrorWithData(w http.ResponseWriter, r *http.Request, status int, code, message string, data any) {
	writeJSON(w, status, errorResponse{
		Status: "error",
		Error: errorPayload{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetReqID(r.Context()),
		},
		Data: data,
	})
}

// mapDomainError picks the HTTP status for an error returned by the services
func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, entities.ErrInvalidPlan):
		return http.StatusBadRequest, "invalid_plan"
	case errors.Is(err, entities.ErrInvalidPhoneNumber):
		return http.StatusBadRequest, "invalid_phone_number"
	case errors.Is(err, entities.ErrInvestmentNotFound), errors.Is(err, entities.ErrUnknownCorrelation):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entities.ErrPaymentPending):
		return http.StatusServiceUnavailable, "payment_pending"
	case errors.Is(err, entities.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, entities.ErrGatewayRejected):
		return http.StatusBadGateway, "gateway_rejected"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError maps err and writes it. Internal errors are logged and their text
// is not sent to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, data any) {
	status, code := mapDomainError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
			"error":      err,
		}).Error("Request failed")
		message = "internal error"
	}
	writeErrorWithData(w, r, status, code, message, data)
}
