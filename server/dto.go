package server

import (
	"time"

	"investor/domain/entities"
)

type createInvestmentRequest struct {
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phoneNumber"`
}

type investmentResponse struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	Amount          int64      `json:"amount"`
	RatePerMinute   string     `json:"ratePerMinute"`
	CycleDays       int        `json:"cycleDays"`
	ActivationBonus int64      `json:"activationBonus"`
	Status          string     `json:"status"`
	AccruedReturns  int64      `json:"accruedReturns"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastAccrualAt   time.Time  `json:"lastAccrualAt"`
	CycleEndsAt     time.Time  `json:"cycleEndsAt"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`

	Transaction transactionDetails `json:"transactionDetails"`
}

type transactionDetails struct {
	PhoneNumber       string     `json:"phoneNumber"`
	CheckoutRequestID *string    `json:"checkoutRequestId,omitempty"`
	MerchantRequestID *string    `json:"merchantRequestId,omitempty"`
	ReceiptNumber     *string    `json:"mpesaReceiptNumber,omitempty"`
	ResultCode        *int       `json:"resultCode,omitempty"`
	ResultDescription *string    `json:"resultDesc,omitempty"`
	TransactionDate   *time.Time `json:"transactionDate,omitempty"`
}

func toInvestmentResponse(inv *entities.Investment) investmentResponse {
	return investmentResponse{
		ID:              inv.ID.String(),
		OwnerID:         inv.OwnerID,
		Amount:          inv.Plan.Amount,
		RatePerMinute:   inv.Plan.RatePerMinute.String(),
		CycleDays:       inv.Plan.CycleDays,
		ActivationBonus: inv.Plan.ActivationBonus,
		Status:          string(inv.Status),
		AccruedReturns:  inv.AccruedReturns,
		CreatedAt:       inv.CreatedAt,
		LastAccrualAt:   inv.LastAccrualAt,
		CycleEndsAt:     inv.CycleEndsAt(),
		ActivatedAt:     inv.ActivatedAt,
		CompletedAt:     inv.CompletedAt,
		Transaction: transactionDetails{
			PhoneNumber:       inv.PhoneNumber,
			CheckoutRequestID: inv.CorrelationID,
			MerchantRequestID: inv.SecondaryCorrelationID,
			ReceiptNumber:     inv.ExternalReceipt,
			ResultCode:        inv.ResultCode,
			ResultDescription: inv.ResultDescription,
			TransactionDate:   inv.SettledAt,
		},
	}
}

func toInvestmentResponses(invs []*entities.Investment) []investmentResponse {
	out := make([]investmentResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvestmentResponse(inv))
	}
	return out
}

type planResponse struct {
	Amount          int64  `json:"amount"`
	RatePerMinute   string `json:"ratePerMinute"`
	CycleDays       int    `json:"cycleDays"`
	ActivationBonus int64  `json:"activationBonus"`
	FinalReturns    int64  `json:"finalReturns"`
}

func toPlanResponses(plans []entities.Plan) []planResponse {
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			Amount:          p.Amount,
			RatePerMinute:   p.RatePerMinute.String(),
			CycleDays:       p.CycleDays,
			ActivationBonus: p.ActivationBonus,
			FinalReturns:    p.FinalReturns(),
		})
	}
	return out
}
