package entity

import (
	"time"

	"medcore/internal/core/apperror"
)

// Status is the lifecycle state of a billable document.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

// transitions lists every status change the lifecycle allows.
// Returns (credit notes) are separate documents, not a status of the original.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusPosted, StatusVoid},
	StatusPosted: {StatusPaid},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Document is the header shared by invoices, receipts and returns.
type Document struct {
	BaseEntity

	// Number is assigned by the numerator at creation
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	Status Status `db:"status" json:"status"`

	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Comment string `db:"comment" json:"comment,omitempty"`
}

// CanModify rejects edits once the document left draft.
func (d *Document) CanModify() error {
	switch d.Status {
	case StatusDraft:
		return nil
	case StatusVoid:
		return apperror.NewInvalidTransition(string(d.Status), "edit")
	default:
		return apperror.NewAlreadyPosted(d.ID.String())
	}
}

// TransitionTo moves the document to next, enforcing the lifecycle table.
func (d *Document) TransitionTo(next Status) error {
	if d.Status == next && next == StatusPosted {
		return apperror.NewAlreadyPosted(d.ID.String())
	}
	if !CanTransition(d.Status, next) {
		return apperror.NewInvalidTransition(string(d.Status), string(next))
	}
	if next == StatusPosted && d.PostedAt == nil {
		now := time.Now().UTC()
		d.PostedAt = &now
	}
	d.Status = next
	d.Touch()
	return nil
}

// IsPosted reports whether the document has financial effect.
func (d *Document) IsPosted() bool {
	return d.Status == StatusPosted || d.Status == StatusPaid
}
