// Package payment records money received or paid out and applies it
// against posted documents. Payments change outstanding amounts, never
// document totals.
package payment

import (
	"context"
	"strings"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/ledger"
)

// Direction of the money flow.
type Direction string

const (
	// DirectionInbound is money received (settles sales invoices).
	DirectionInbound Direction = "inbound"
	// DirectionOutbound is money paid out (settles purchase receipts, refunds returns).
	DirectionOutbound Direction = "outbound"
)

// Accepts reports whether a payment in direction d can settle kind k.
func (d Direction) Accepts(k invoice.Kind) bool {
	switch d {
	case DirectionInbound:
		return k == invoice.KindSalesInvoice
	case DirectionOutbound:
		return k == invoice.KindPurchaseReceipt || k == invoice.KindSalesReturn
	}
	return false
}

// Payment is a posted money movement.
type Payment struct {
	entity.Document
	entity.CurrencyAware

	Direction Direction   `db:"direction" json:"direction"`
	PartyRef  string      `db:"party_ref" json:"partyRef"`
	Amount    types.Money `db:"amount" json:"amount"`
	Method    string      `db:"method" json:"method"`
	Reference string      `db:"reference" json:"reference,omitempty"`
	Posted    bool        `db:"posted" json:"posted"`

	// Unapplied is the part of Amount not applied to any document.
	Unapplied types.Money `db:"unapplied" json:"unapplied"`

	Applications []Application `db:"-" json:"applications"`
}

// Application is the part of a payment applied to one document.
type Application struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope
	PaymentID  id.ID       `db:"payment_id" json:"paymentId"`
	DocumentID id.ID       `db:"document_id" json:"documentId"`
	Amount     types.Money `db:"amount" json:"amount"`

	OutstandingBefore types.Money `db:"outstanding_before" json:"outstandingBefore"`
	OutstandingAfter  types.Money `db:"outstanding_after" json:"outstandingAfter"`
	Overpaid          bool        `db:"overpaid" json:"overpaid"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	var reasons []string
	if p.Direction != DirectionInbound && p.Direction != DirectionOutbound {
		reasons = append(reasons, "direction must be inbound or outbound")
	}
	if !p.Amount.IsPositive() {
		reasons = append(reasons, "amount must be positive")
	}
	if strings.TrimSpace(p.Method) == "" {
		reasons = append(reasons, "method is required")
	}
	if err := p.ValidateCurrency(ctx); err != nil {
		reasons = append(reasons, "currency must be a 3-letter ISO code")
	}
	applied := types.Zero()
	for _, a := range p.Applications {
		if !a.Amount.IsPositive() {
			reasons = append(reasons, "applied amounts must be positive")
		}
		applied = applied.Add(a.Amount)
	}
	if applied.GreaterThan(p.Amount) {
		reasons = append(reasons, "applied amounts exceed the payment amount")
	}
	if len(reasons) > 0 {
		return apperror.NewValidationFailed("invalid payment", reasons)
	}
	return nil
}

// Overpaid reports whether any application over-settled its document.
func (p *Payment) Overpaid() bool {
	for _, a := range p.Applications {
		if a.Overpaid {
			return true
		}
	}
	return false
}

// LedgerRef implements ledger.Source.
func (p *Payment) LedgerRef() ledger.Ref {
	return ledger.Ref{
		ID:       p.ID,
		Scope:    p.Scope,
		Kind:     "payment_" + string(p.Direction),
		Number:   p.Number,
		Total:    p.Amount,
		Quantity: types.Zero(),
	}
}
