package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"investor/domain/entities"
	"investor/domain/interfaces"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// InvestmentHandler exposes the investment operations to the surrounding application
type InvestmentHandler struct {
	reconciliation interfaces.ReconciliationService
	investments    interfaces.InvestmentService
}

// NewInvestmentHandler creates a new investment handler
func NewInvestmentHandler(reconciliation interfaces.ReconciliationService, investments interfaces.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{
		reconciliation: reconciliation,
		investments:    investments,
	}
}

func (h *InvestmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	inv, err := h.reconciliation.CreatePending(r.Context(), ownerFromContext(r.Context()), req.Amount, strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		// The record exists but the prompt did not go out; the caller can retry it
		var data any
		if inv != nil {
			data = toInvestmentResponse(inv)
		}
		writeDomainError(w, r, err, data)
		return
	}
	writeSuccess(w, http.StatusCreated, "Payment prompt sent", toInvestmentResponse(inv))
}

func (h *InvestmentHandler) retry(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.ownedInvestment(w, r)
	if !ok {
		return
	}

	updated, err := h.reconciliation.RetryInitiation(r.Context(), inv.ID)
	if err != nil {
		var data any
		if updated != nil {
			data = toInvestmentResponse(updated)
		}
		writeDomainError(w, r, err, data)
		return
	}
	writeSuccess(w, http.StatusOK, "", toInvestmentResponse(updated))
}

// paymentStatus polls the gateway only for checkout requests owned by the caller
func (h *InvestmentHandler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	checkoutRequestID := chi.URLParam(r, "checkoutRequestId")

	inv, err := h.investments.GetByCorrelationID(r.Context(), checkoutRequestID)
	if err == nil && inv.OwnerID != ownerFromContext(r.Context()) {
		err = entities.ErrInvestmentNotFound
	}
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}

	inv, err = h.reconciliation.PollStatus(r.Context(), checkoutRequestID)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "", toInvestmentResponse(inv))
}

func (h *InvestmentHandler) get(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.ownedInvestment(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "", toInvestmentResponse(inv))
}

func (h *InvestmentHandler) list(w http.ResponseWriter, r *http.Request) {
	invs, err := h.investments.ListByOwner(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "", toInvestmentResponses(invs))
}

func (h *InvestmentHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.investments.Stats(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

func (h *InvestmentHandler) plans(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "", toPlanResponses(h.investments.Plans()))
}

// ownedInvestment loads the investment named in the path. Records belonging to
// someone else are reported as missing.
func (h *InvestmentHandler) ownedInvestment(w http.ResponseWriter, r *http.Request) (*entities.Investment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "investment id must be a UUID")
		return nil, false
	}

	inv, err := h.investments.Get(r.Context(), id)
	if err == nil && inv.OwnerID != ownerFromContext(r.Context()) {
		err = entities.ErrInvestmentNotFound
	}
	if err != nil {
		writeDomainError(w, r, err, nil)
		return nil, false
	}
	return inv, true
}
