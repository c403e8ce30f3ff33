// Package ledger writes the append-only accounting history of documents.
//
// For every document the amount deltas of its records sum to the
// document's current stored total. History is never edited; a void or a
// return adds a reversal record.
package ledger

import (
	"encoding/json"
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

// ChangeType classifies a ledger record.
type ChangeType string

const (
	ChangeInsert   ChangeType = "insert"
	ChangeUpdate   ChangeType = "update"
	ChangeReversal ChangeType = "reversal"
)

// Record is one append-only ledger entry.
type Record struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope

	DocumentID     id.ID  `db:"document_id" json:"documentId"`
	DocumentKind   string `db:"document_kind" json:"documentKind"`
	DocumentNumber string `db:"document_number" json:"documentNumber"`

	ChangeType    ChangeType     `db:"change_type" json:"changeType"`
	AmountDelta   types.Money    `db:"amount_delta" json:"amountDelta"`
	QuantityDelta types.Quantity `db:"quantity_delta" json:"quantityDelta"`

	OldData json.RawMessage `db:"old_data" json:"oldData,omitempty"`
	NewData json.RawMessage `db:"new_data" json:"newData,omitempty"`

	// Reverses points at the record this one negates.
	Reverses *id.ID `db:"reverses_id" json:"reversesId,omitempty"`

	// CausedBy is the other document that triggered the change (payment, return).
	CausedBy *id.ID `db:"caused_by_id" json:"causedById,omitempty"`

	Actor     string    `db:"actor" json:"actor"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Ref is what the poster needs to know about a document.
type Ref struct {
	ID       id.ID
	Scope    tenant.Scope
	Kind     string
	Number   string
	Total    types.Money
	Quantity types.Quantity
}

// Source is implemented by documents the poster can record.
type Source interface {
	LedgerRef() Ref
}

// Reconciliation compares a document total with its recorded deltas.
type Reconciliation struct {
	DocumentID id.ID       `json:"documentId"`
	Expected   types.Money `json:"expected"`
	Recorded   types.Money `json:"recorded"`
	Records    int         `json:"records"`
	Balanced   bool        `json:"balanced"`
}
