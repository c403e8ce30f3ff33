// Package posting runs document transitions as one atomic unit:
// stock effects, document state, ledger records and the outbox event
// commit together or not at all.
package posting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/tx"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/registers/batch"
	"medcore/pkg/logger"
)

var tracer = otel.Tracer("medcore/posting")

// Transition names the ledger treatment of a run.
type Transition string

const (
	TransitionPost    Transition = "post"
	TransitionVoid    Transition = "void"
	TransitionReturn  Transition = "return"
	TransitionPayment Transition = "payment"
)

// Outbox stores events inside the posting transaction for later relay.
type Outbox interface {
	Publish(ctx context.Context, ev notification.Event) error
}

// Effects are the stock mutations of a transition. Every entry carries the
// document line it belongs to.
type Effects struct {
	Allocate []batch.AllocateRequest
	Restock  []batch.RestockInput
	Reverse  []batch.ReverseInput
}

// Outcome reports what the stock effects did, keyed by line.
type Outcome struct {
	Allocations map[id.ID]*batch.AllocationResult
	Restocked   map[id.ID]*batch.RestockResult
	Reversed    map[id.ID][]*batch.Batch
	Warnings    []string
	Record      *ledger.Record
}

// Request describes one transition.
type Request struct {
	Transition Transition
	Effects    Effects

	// Apply persists the new document state. It runs after stock effects
	// and before the ledger record.
	Apply func(ctx context.Context, out *Outcome) error

	// Document is read after Apply for the ledger record and the event.
	Document ledger.Source

	// Original is the document a return reverses.
	Original ledger.Source

	// Snapshot is stored on the ledger record and in the event payload.
	Snapshot func() any

	// EventType is published when non-empty.
	EventType string
}

// Engine executes transitions.
type Engine struct {
	txm        tx.Manager
	stock      *batch.Service
	poster     *ledger.Poster
	outbox     Outbox
	dispatcher notification.Dispatcher
}

// NewEngine creates a posting engine.
func NewEngine(txm tx.Manager, stock *batch.Service, poster *ledger.Poster) *Engine {
	return &Engine{txm: txm, stock: stock, poster: poster}
}

// WithOutbox makes the engine write events to a transactional outbox.
func (e *Engine) WithOutbox(o Outbox) *Engine {
	e.outbox = o
	return e
}

// WithDispatcher makes the engine hand events to d after commit.
// It is used when no outbox is configured.
func (e *Engine) WithDispatcher(d notification.Dispatcher) *Engine {
	e.dispatcher = d
	return e
}

// Execute runs req in a transaction. Any error rolls back every mutation.
func (e *Engine) Execute(ctx context.Context, tc tenant.Context, req Request) (*Outcome, error) {
	ref := req.Document.LedgerRef()
	ctx, span := tracer.Start(ctx, "posting."+string(req.Transition),
		trace.WithAttributes(
			attribute.String("document.id", ref.ID.String()),
			attribute.String("document.kind", ref.Kind),
		))
	defer span.End()

	out := &Outcome{
		Allocations: make(map[id.ID]*batch.AllocationResult),
		Restocked:   make(map[id.ID]*batch.RestockResult),
		Reversed:    make(map[id.ID][]*batch.Batch),
	}
	var event *notification.Event

	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.applyStock(ctx, tc, req.Effects, out); err != nil {
			return err
		}
		if req.Apply != nil {
			if err := req.Apply(ctx, out); err != nil {
				return err
			}
		}

		ref := req.Document.LedgerRef()
		var snap any
		if req.Snapshot != nil {
			snap = req.Snapshot()
		}
		rec, err := e.record(ctx, tc, req, ref, snap)
		if err != nil {
			return err
		}
		out.Record = rec

		if req.EventType == "" {
			return nil
		}
		ev, err := newEvent(req.EventType, ref, snap)
		if err != nil {
			return err
		}
		event = &ev
		if e.outbox != nil {
			if err := e.outbox.Publish(ctx, ev); err != nil {
				return fmt.Errorf("publish %s: %w", ev.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if event != nil && e.outbox == nil && e.dispatcher != nil {
		// Delivery problems never fail a committed transition.
		if err := e.dispatcher.Dispatch(ctx, *event); err != nil {
			logger.Warn(ctx, "notification dispatch failed",
				"event_type", event.Type,
				"document_id", ref.ID,
				"error", err,
			)
		}
	}

	logger.Info(ctx, "document transition committed",
		"transition", req.Transition,
		"document_id", ref.ID,
		"kind", ref.Kind,
		"number", req.Document.LedgerRef().Number,
		"total", req.Document.LedgerRef().Total.String(),
	)
	return out, nil
}

func (e *Engine) applyStock(ctx context.Context, tc tenant.Context, eff Effects, out *Outcome) error {
	// Products are locked in a fixed order so concurrent postings cannot deadlock.
	allocs := slices.Clone(eff.Allocate)
	slices.SortStableFunc(allocs, func(a, b batch.AllocateRequest) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	for _, req := range allocs {
		res, err := e.stock.Allocate(ctx, tc, req)
		if err != nil {
			return err
		}
		out.Allocations[lineKey(req.LineID)] = res
	}
	for _, in := range eff.Restock {
		res, err := e.stock.Restock(ctx, tc, in)
		if err != nil {
			return err
		}
		out.Restocked[lineKey(in.LineID)] = res
		out.Warnings = append(out.Warnings, res.Warnings...)
	}
	for _, in := range eff.Reverse {
		b, err := e.stock.Reverse(ctx, tc, in)
		if err != nil {
			return err
		}
		key := lineKey(in.LineID)
		out.Reversed[key] = append(out.Reversed[key], b)
	}
	return nil
}

func lineKey(lineID *id.ID) id.ID {
	if lineID == nil {
		return id.Nil()
	}
	return *lineID
}

func (e *Engine) record(ctx context.Context, tc tenant.Context, req Request, ref ledger.Ref, snap any) (*ledger.Record, error) {
	switch req.Transition {
	case TransitionPost, TransitionPayment:
		return e.poster.Posted(ctx, tc, ref, snap)
	case TransitionVoid:
		return e.poster.Voided(ctx, tc, ref, snap)
	case TransitionReturn:
		if req.Original == nil {
			return nil, fmt.Errorf("return transition without original document")
		}
		return e.poster.Returned(ctx, tc, ref, req.Original.LedgerRef(), snap)
	default:
		return nil, fmt.Errorf("unknown transition %q", req.Transition)
	}
}

func newEvent(eventType string, ref ledger.Ref, snap any) (notification.Event, error) {
	ev := notification.Event{
		ID:         id.New(),
		Type:       eventType,
		TenantID:   ref.Scope.TenantID,
		CompanyID:  ref.Scope.CompanyID,
		DocumentID: ref.ID,
		Kind:       ref.Kind,
		Number:     ref.Number,
		Total:      ref.Total,
		OccurredAt: time.Now().UTC(),
	}
	if snap != nil {
		payload, err := json.Marshal(snap)
		if err != nil {
			return ev, fmt.Errorf("encode event payload: %w", err)
		}
		ev.Payload = payload
	}
	return ev, nil
}
