package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/id"
	"medcore/internal/domain/documents/payment"
)

// RecordPaymentRequest records a payment and applies it to documents.
type RecordPaymentRequest struct {
	Direction    payment.Direction    `json:"direction" binding:"required,oneof=inbound outbound"`
	PartyRef     string               `json:"partyRef" binding:"max=128"`
	Amount       decimal.Decimal      `json:"amount"`
	Method       string               `json:"method" binding:"required,max=32"`
	Reference    string               `json:"reference" binding:"max=128"`
	Currency     string               `json:"currency" binding:"omitempty,len=3"`
	Date         *time.Time           `json:"date"`
	Applications []ApplicationRequest `json:"applications" binding:"dive"`
}

// ApplicationRequest applies part of a payment to one document.
type ApplicationRequest struct {
	DocumentID id.ID           `json:"documentId" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

// ToInput converts the request to a service input.
func (r RecordPaymentRequest) ToInput(now time.Time) payment.RecordInput {
	date := now
	if r.Date != nil {
		date = *r.Date
	}
	apps := make([]payment.ApplicationInput, len(r.Applications))
	for i, a := range r.Applications {
		apps[i] = payment.ApplicationInput{DocumentID: a.DocumentID, Amount: a.Amount}
	}
	return payment.RecordInput{
		Direction:    r.Direction,
		PartyRef:     r.PartyRef,
		Amount:       r.Amount,
		Method:       r.Method,
		Reference:    r.Reference,
		Currency:     r.Currency,
		Date:         date,
		Applications: apps,
	}
}
