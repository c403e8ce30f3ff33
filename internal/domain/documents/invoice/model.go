// Package invoice is the billable document engine: sales invoices,
// purchase receipts and sales returns (credit notes).
package invoice

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/pricing"
)

// Kind is the document variant.
type Kind string

const (
	// KindSalesInvoice bills a patient or customer and allocates stock.
	KindSalesInvoice Kind = "sales_invoice"
	// KindPurchaseReceipt records goods from a supplier and restocks batches.
	KindPurchaseReceipt Kind = "purchase_receipt"
	// KindSalesReturn is a credit note against a posted sales invoice.
	KindSalesReturn Kind = "sales_return"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSalesInvoice, KindPurchaseReceipt, KindSalesReturn:
		return true
	}
	return false
}

// IsCredit reports whether the kind carries negative quantities and totals.
func (k Kind) IsCredit() bool {
	return k == KindSalesReturn
}

// NumberPrefix is the numerator prefix of the kind.
func (k Kind) NumberPrefix() string {
	switch k {
	case KindPurchaseReceipt:
		return "GRN"
	case KindSalesReturn:
		return "CRN"
	default:
		return "INV"
	}
}

// Invoice is a billable document with its lines.
type Invoice struct {
	entity.Document
	entity.CurrencyAware

	Kind     Kind   `db:"kind" json:"kind"`
	PartyRef string `db:"party_ref" json:"partyRef"`

	Subtotal    types.Money `db:"subtotal" json:"subtotal"`
	TotalTax    types.Money `db:"total_tax" json:"totalTax"`
	Total       types.Money `db:"total" json:"total"`
	Outstanding types.Money `db:"outstanding" json:"outstanding"`

	// OriginalID links a return to the invoice it reverses.
	OriginalID *id.ID `db:"original_id" json:"originalId,omitempty"`
	Reason     string `db:"reason" json:"reason,omitempty"`

	Lines []*Line `db:"-" json:"lines"`
}

// Line is one row of a document.
type Line struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope
	DocumentID id.ID `db:"document_id" json:"documentId"`
	LineNo     int   `db:"line_no" json:"lineNo"`

	// ProductID is nil for ad-hoc lines (fees, services without a catalog entry).
	ProductID   *id.ID         `db:"product_id" json:"productId,omitempty"`
	Description string         `db:"description" json:"description"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Unit        string         `db:"unit" json:"unit"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	Discount    types.Money    `db:"discount" json:"discount"`
	Tax         types.Money    `db:"tax" json:"tax"`
	NetAmount   types.Money    `db:"net_amount" json:"netAmount"`

	// BaseQuantity is Quantity in the product base unit, set at posting.
	BaseQuantity types.Quantity `db:"base_quantity" json:"baseQuantity"`

	// Receipt lines describe the batch being received.
	BatchNumber string              `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time          `db:"expiry_date" json:"expiryDate,omitempty"`
	SalePrice   decimal.NullDecimal `db:"sale_price" json:"salePrice"`
	MRP         decimal.NullDecimal `db:"mrp" json:"mrp"`

	// OriginalLineID links a return line to the line it reverses.
	OriginalLineID *id.ID `db:"original_line_id" json:"originalLineId,omitempty"`

	Allocations []LineAllocation `db:"-" json:"allocations,omitempty"`
}

// LineAllocation records the batch stock a posted line moved.
// Quantity is in the product base unit and signed like the line.
type LineAllocation struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope
	DocumentID id.ID          `db:"document_id" json:"documentId"`
	LineID     id.ID          `db:"line_id" json:"lineId"`
	BatchID    id.ID          `db:"batch_id" json:"batchId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	UnitCost   types.Money    `db:"unit_cost" json:"unitCost"`
}

// LineInput describes a line to add or replace.
type LineInput struct {
	ProductID   *id.ID
	Description string
	Quantity    types.Quantity
	Unit        string
	UnitPrice   types.Money
	Discount    types.Money
	Tax         types.Money

	BatchNumber string
	ExpiryDate  *time.Time
	SalePrice   decimal.NullDecimal
	MRP         decimal.NullDecimal
}

// NewInvoice creates an empty draft.
func NewInvoice(tc tenant.Context, kind Kind, partyRef, currency string, date time.Time) *Invoice {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	inv := &Invoice{
		Document: entity.Document{
			BaseEntity: entity.NewBaseEntity(tc),
			Date:       date,
			Status:     entity.StatusDraft,
		},
		CurrencyAware: entity.CurrencyAware{Currency: strings.ToUpper(strings.TrimSpace(currency))},
		Kind:          kind,
		PartyRef:      strings.TrimSpace(partyRef),
	}
	inv.Recalculate()
	return inv
}

// newLine builds a line from input and computes its net amount once.
func (inv *Invoice) newLine(in LineInput) *Line {
	l := &Line{
		ID:           id.New(),
		Scope:        inv.Scope,
		DocumentID:   inv.ID,
		ProductID:    in.ProductID,
		Description:  strings.TrimSpace(in.Description),
		Quantity:     in.Quantity,
		Unit:         strings.ToLower(strings.TrimSpace(in.Unit)),
		UnitPrice:    in.UnitPrice,
		Discount:     in.Discount,
		Tax:          in.Tax,
		BaseQuantity: types.Zero(),
		BatchNumber:  strings.TrimSpace(in.BatchNumber),
		ExpiryDate:   in.ExpiryDate,
		SalePrice:    in.SalePrice,
		MRP:          in.MRP,
	}
	l.compute()
	return l
}

func (l *Line) compute() {
	a := pricing.LineAmounts(l.Quantity, l.UnitPrice, l.Discount, l.Tax)
	l.Discount = a.Discount
	l.Tax = a.Tax
	l.NetAmount = a.Net
}

// Gross is Quantity*UnitPrice rounded to money places.
func (l *Line) Gross() types.Money {
	return types.RoundMoney(l.Quantity.Mul(l.UnitPrice))
}

// HasProduct reports whether the line references a product.
func (l *Line) HasProduct() bool {
	return l.ProductID != nil && !id.IsNil(*l.ProductID)
}

// validateLine checks a line against the sign convention of kind.
func validateLine(kind Kind, l *Line) []string {
	var reasons []string
	if l.Quantity.IsZero() {
		reasons = append(reasons, "quantity cannot be zero")
	}
	if kind.IsCredit() != l.Quantity.IsNegative() && !l.Quantity.IsZero() {
		if kind.IsCredit() {
			reasons = append(reasons, "return quantities must be negative")
		} else {
			reasons = append(reasons, "quantity must be positive")
		}
	}
	if l.UnitPrice.IsNegative() {
		reasons = append(reasons, "unit price cannot be negative")
	}
	if !sameSignOrZero(l.Discount, l.Quantity) {
		reasons = append(reasons, "discount must have the sign of the quantity")
	}
	if !sameSignOrZero(l.Tax, l.Quantity) {
		reasons = append(reasons, "tax must have the sign of the quantity")
	}
	if l.Discount.Abs().GreaterThan(l.Gross().Abs()) {
		reasons = append(reasons, "discount cannot exceed the line amount")
	}
	if l.Unit == "" && l.HasProduct() {
		reasons = append(reasons, "unit is required for product lines")
	}
	if !l.HasProduct() && l.Description == "" {
		reasons = append(reasons, "description is required for lines without a product")
	}
	return reasons
}

func sameSignOrZero(v, ref decimal.Decimal) bool {
	return v.IsZero() || v.Sign() == ref.Sign()
}

// Recalculate derives subtotal, tax, total and outstanding from the lines.
// It is called on every line mutation while draft.
func (inv *Invoice) Recalculate() {
	subtotal, tax := types.Zero(), types.Zero()
	for i, l := range inv.Lines {
		l.LineNo = i + 1
		subtotal = subtotal.Add(l.Gross().Sub(l.Discount))
		tax = tax.Add(l.Tax)
	}
	inv.Subtotal = subtotal
	inv.TotalTax = tax
	inv.Total = subtotal.Add(tax)
	inv.Outstanding = inv.Total
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if len(inv.Lines) == 0 {
		return apperror.NewEmptyDocument()
	}
	var reasons []string
	if !inv.Kind.IsValid() {
		reasons = append(reasons, "unknown document kind")
	}
	if err := inv.ValidateCurrency(ctx); err != nil {
		reasons = append(reasons, "currency must be a 3-letter ISO code")
	}
	for _, l := range inv.Lines {
		for _, r := range validateLine(inv.Kind, l) {
			reasons = append(reasons, lineReason(l, r))
		}
	}
	if len(reasons) > 0 {
		return apperror.NewValidationFailed("invalid document", reasons)
	}
	return nil
}

// ValidateTotal rejects a total whose sign contradicts the kind.
func (inv *Invoice) ValidateTotal() error {
	if inv.Kind.IsCredit() && inv.Total.IsPositive() {
		return apperror.NewInvalidTotal(inv.Total.String())
	}
	if !inv.Kind.IsCredit() && inv.Total.IsNegative() {
		return apperror.NewInvalidTotal(inv.Total.String())
	}
	return nil
}

// Line returns the line with lineID.
func (inv *Invoice) Line(lineID id.ID) (*Line, bool) {
	for _, l := range inv.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return nil, false
}

// ApplyPayment reduces the outstanding amount by amount.
// It reports overpaid when the payment crosses zero. A posted document
// becomes paid once nothing is outstanding.
func (inv *Invoice) ApplyPayment(amount types.Money) (overpaid bool, err error) {
	if !inv.IsPosted() {
		return false, apperror.NewInvalidTransition(string(inv.Status), string(entity.StatusPaid))
	}
	var settled bool
	if inv.Kind.IsCredit() {
		inv.Outstanding = inv.Outstanding.Add(amount)
		overpaid = inv.Outstanding.IsPositive()
		settled = !inv.Outstanding.IsNegative()
	} else {
		inv.Outstanding = inv.Outstanding.Sub(amount)
		overpaid = inv.Outstanding.IsNegative()
		settled = !inv.Outstanding.IsPositive()
	}

	if settled && inv.Status == entity.StatusPosted {
		if err := inv.TransitionTo(entity.StatusPaid); err != nil {
			return overpaid, err
		}
	} else {
		inv.Touch()
	}
	return overpaid, nil
}

// TotalQuantity is Σ line quantity in base units (posted) or line units (draft).
func (inv *Invoice) TotalQuantity() types.Quantity {
	q := types.Zero()
	for _, l := range inv.Lines {
		if l.BaseQuantity.IsZero() {
			q = q.Add(l.Quantity)
		} else {
			q = q.Add(l.BaseQuantity)
		}
	}
	return q
}

// EffectiveTotal is the amount the ledger must hold for the document:
// the total once posted, zero for drafts and voided drafts.
func (inv *Invoice) EffectiveTotal() types.Money {
	if inv.IsPosted() {
		return inv.Total
	}
	return types.Zero()
}

// LedgerRef implements ledger.Source.
func (inv *Invoice) LedgerRef() ledger.Ref {
	return ledger.Ref{
		ID:       inv.ID,
		Scope:    inv.Scope,
		Kind:     string(inv.Kind),
		Number:   inv.Number,
		Total:    inv.Total,
		Quantity: inv.TotalQuantity(),
	}
}

// Snapshot is the document state stored on ledger records.
type Snapshot struct {
	ID          id.ID          `json:"id"`
	Number      string         `json:"number"`
	Kind        Kind           `json:"kind"`
	Status      entity.Status  `json:"status"`
	Currency    string         `json:"currency"`
	Subtotal    types.Money    `json:"subtotal"`
	TotalTax    types.Money    `json:"totalTax"`
	Total       types.Money    `json:"total"`
	Outstanding types.Money    `json:"outstanding"`
	Lines       []LineSnapshot `json:"lines,omitempty"`
}

// LineSnapshot is the ledger view of one line.
type LineSnapshot struct {
	ID        id.ID          `json:"id"`
	ProductID *id.ID         `json:"productId,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	Unit      string         `json:"unit"`
	UnitPrice types.Money    `json:"unitPrice"`
	Discount  types.Money    `json:"discount"`
	Tax       types.Money    `json:"tax"`
	NetAmount types.Money    `json:"netAmount"`
}

// Snapshot captures the document for the ledger.
func (inv *Invoice) Snapshot(withLines bool) Snapshot {
	s := Snapshot{
		ID:          inv.ID,
		Number:      inv.Number,
		Kind:        inv.Kind,
		Status:      inv.Status,
		Currency:    inv.Currency,
		Subtotal:    inv.Subtotal,
		TotalTax:    inv.TotalTax,
		Total:       inv.Total,
		Outstanding: inv.Outstanding,
	}
	if withLines {
		for _, l := range inv.Lines {
			s.Lines = append(s.Lines, LineSnapshot{
				ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, Unit: l.Unit,
				UnitPrice: l.UnitPrice, Discount: l.Discount, Tax: l.Tax, NetAmount: l.NetAmount,
			})
		}
	}
	return s
}

func lineReason(l *Line, reason string) string {
	if l.LineNo > 0 {
		return "line " + strconv.Itoa(l.LineNo) + ": " + reason
	}
	return reason
}
