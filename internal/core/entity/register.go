package entity

import (
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

// MovementKind classifies a stock movement.
type MovementKind string

const (
	// MovementReceipt increases a batch (purchase receipt, opening stock)
	MovementReceipt MovementKind = "receipt"
	// MovementAllocation decreases a batch (posted sale line)
	MovementAllocation MovementKind = "allocation"
	// MovementReversal puts allocated stock back (posted return line)
	MovementReversal MovementKind = "reversal"
)

// StockMovement is one append-only change to a batch's quantity-on-hand.
// Quantity is signed and always in the product base unit.
type StockMovement struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope

	BatchID    id.ID          `db:"batch_id" json:"batchId"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	Kind       MovementKind   `db:"kind" json:"kind"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	UnitCost   types.Money    `db:"unit_cost" json:"unitCost"`
	DocumentID *id.ID         `db:"document_id" json:"documentId,omitempty"`
	LineID     *id.ID         `db:"line_id" json:"lineId,omitempty"`

	// Reference links a reversal back to the document line it undoes
	Reference string    `db:"reference" json:"reference,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement stamps a movement for the caller in tc.
func NewStockMovement(tc tenant.Context, kind MovementKind, batchID, productID id.ID, qty types.Quantity, unitCost types.Money) StockMovement {
	return StockMovement{
		ID:        id.New(),
		Scope:     tc.Scope(),
		BatchID:   batchID,
		ProductID: productID,
		Kind:      kind,
		Quantity:  qty,
		UnitCost:  unitCost,
		CreatedBy: tc.UserID,
		CreatedAt: time.Now().UTC(),
	}
}

// Value is the signed cost effect of the movement.
func (m StockMovement) Value() types.Money {
	return types.RoundMoney(m.Quantity.Mul(m.UnitCost))
}
