package entities

import "time"

// ResultCodeSuccess is the gateway result code for a completed payment
const ResultCodeSuccess = 0

// PaymentInitiation is what the gateway returns after accepting a payment prompt
type PaymentInitiation struct {
	CorrelationID          string // CheckoutRequestID
	SecondaryCorrelationID string // MerchantRequestID
	CustomerMessage        string
}

// SettlementStatus is the gateway's answer to a status query
type SettlementStatus struct {
	CorrelationID     string
	ResultCode        int
	ResultDescription string
}

// IsSuccess returns true if the payment went through
func (s SettlementStatus) IsSuccess() bool {
	return s.ResultCode == ResultCodeSuccess
}

// SettlementResult is a payment outcome delivered by callback or obtained by polling
type SettlementResult struct {
	CorrelationID          string
	SecondaryCorrelationID string
	ResultCode             int
	ResultDescription      string

	// Only present on successful callbacks
	ExternalReceipt string
	Amount          int64
	PhoneNumber     string
	TransactionDate *time.Time
}

// IsSuccess returns true if the payment went through
func (r SettlementResult) IsSuccess() bool {
	return r.ResultCode == ResultCodeSuccess
}

// FromStatus converts a polled status into a settlement result
func FromStatus(s *SettlementStatus) SettlementResult {
	return SettlementResult{
		CorrelationID:     s.CorrelationID,
		ResultCode:        s.ResultCode,
		ResultDescription: s.ResultDescription,
	}
}
