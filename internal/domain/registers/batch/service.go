package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/tx"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/pricing"
	"medcore/pkg/logger"
)

// ProductLookup resolves a product visible to the caller.
type ProductLookup interface {
	Get(ctx context.Context, tc tenant.Context, productID id.ID) (*product.Product, error)
}

// Service provides stock batch operations. Every mutation of a product's
// batches runs in a transaction holding that product's lock.
type Service struct {
	repo     Repository
	txm      tx.Manager
	products ProductLookup
	policy   *pricing.Policy
	now      func() time.Time
}

// NewService creates a stock batch service. A nil policy means the
// default soft pricing policy.
func NewService(repo Repository, txm tx.Manager, products ProductLookup, policy *pricing.Policy) *Service {
	if policy == nil {
		policy = pricing.DefaultPolicy()
	}
	return &Service{
		repo:     repo,
		txm:      txm,
		products: products,
		policy:   policy,
		now:      time.Now,
	}
}

// AllocateRequest asks for Quantity base units of a product.
type AllocateRequest struct {
	ProductID id.ID
	Quantity  types.Quantity

	// BatchID pins the allocation to one batch instead of FEFO.
	BatchID *id.ID

	// AsOf is the date expiry is judged against; zero means now.
	AsOf time.Time

	DocumentID *id.ID
	LineID     *id.ID
}

// Allocate consumes batches in FEFO order until the request is satisfied.
// Nothing is mutated when stock is short. A lost update is retried once.
func (s *Service) Allocate(ctx context.Context, tc tenant.Context, req AllocateRequest) (*AllocationResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("allocation quantity must be positive")
	}
	if req.AsOf.IsZero() {
		req.AsOf = s.now()
	}

	res, err := s.allocateOnce(ctx, tc, req)
	if apperror.IsConcurrentModification(err) {
		logger.Warn(ctx, "allocation lost a race, retrying",
			"product_id", req.ProductID,
			"quantity", req.Quantity.String(),
		)
		res, err = s.allocateOnce(ctx, tc, req)
	}
	return res, err
}

func (s *Service) allocateOnce(ctx context.Context, tc tenant.Context, req AllocateRequest) (*AllocationResult, error) {
	var result *AllocationResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockProduct(ctx, tc, req.ProductID); err != nil {
			return err
		}
		batches, err := s.repo.ListForUpdate(ctx, tc, req.ProductID)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		plan, available := Select(batches, req.Quantity, req.AsOf, req.BatchID)
		if available.LessThan(req.Quantity) {
			return apperror.NewInsufficientStock(req.ProductID.String(),
				req.Quantity.String(), available.String(), req.Quantity.Sub(available).String())
		}

		byID := make(map[id.ID]*Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}

		moves := make([]entity.StockMovement, 0, len(plan))
		total := types.Zero()
		for _, a := range plan {
			b := byID[a.BatchID]
			if err := b.Take(a.Quantity); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, b); err != nil {
				return err
			}

			m := entity.NewStockMovement(tc, entity.MovementAllocation, b.ID, b.ProductID, a.Quantity.Neg(), a.UnitCost)
			m.DocumentID, m.LineID = req.DocumentID, req.LineID
			moves = append(moves, m)
			total = total.Add(a.Cost())
		}
		if err := s.repo.AppendMovements(ctx, moves); err != nil {
			return fmt.Errorf("append movements: %w", err)
		}

		result = &AllocationResult{
			ProductID:   req.ProductID,
			Requested:   req.Quantity,
			Allocations: plan,
			TotalCost:   total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Preview plans an allocation without mutating anything.
func (s *Service) Preview(ctx context.Context, tc tenant.Context, req AllocateRequest) (*AllocationResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if req.AsOf.IsZero() {
		req.AsOf = s.now()
	}
	batches, err := s.repo.ListByProduct(ctx, tc, req.ProductID)
	if err != nil {
		return nil, err
	}
	plan, available := Select(batches, req.Quantity, req.AsOf, req.BatchID)
	if available.LessThan(req.Quantity) {
		return nil, apperror.NewInsufficientStock(req.ProductID.String(),
			req.Quantity.String(), available.String(), req.Quantity.Sub(available).String())
	}
	total := types.Zero()
	for _, a := range plan {
		total = total.Add(a.Cost())
	}
	return &AllocationResult{ProductID: req.ProductID, Requested: req.Quantity, Allocations: plan, TotalCost: total}, nil
}

// RestockInput describes stock arriving into a batch. Prices are per base unit.
type RestockInput struct {
	ProductID   id.ID
	BatchNumber string
	Quantity    types.Quantity
	UnitCost    types.Money
	SalePrice   types.Money
	MRP         decimal.NullDecimal
	ExpiryDate  *time.Time

	DocumentID *id.ID
	LineID     *id.ID
}

// RestockResult is the batch after the receipt plus any soft pricing warnings.
type RestockResult struct {
	Batch    *Batch   `json:"batch"`
	Created  bool     `json:"created"`
	Warnings []string `json:"warnings,omitempty"`
}

// Restock creates the batch or increments an existing one with the same number.
// Prices are checked against the pricing policy first: hard violations
// reject the receipt, soft ones are returned as warnings.
// A receipt into a batch that still has stock must carry the batch's unit
// cost and expiry; a depleted batch takes the new ones.
func (s *Service) Restock(ctx context.Context, tc tenant.Context, in RestockInput) (*RestockResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("restock quantity must be positive")
	}
	p, err := s.products.Get(ctx, tc, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Stocked {
		return nil, apperror.NewValidation(fmt.Sprintf("product %s is not stocked", p.SKU))
	}

	check := s.policy.CheckBatchPrices(in.UnitCost, in.SalePrice, in.MRP)
	if err := check.Err(); err != nil {
		return nil, err
	}

	result := &RestockResult{Warnings: check.Warnings()}
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockProduct(ctx, tc, in.ProductID); err != nil {
			return err
		}

		b, err := s.repo.GetByNumber(ctx, tc, in.ProductID, in.BatchNumber)
		switch {
		case apperror.IsNotFound(err):
			b = NewBatch(tc, in.ProductID, in.BatchNumber)
			s.applyPrices(b, in)
			b.Put(in.Quantity)
			if err := b.Validate(ctx); err != nil {
				return err
			}
			if err := s.repo.Create(ctx, b); err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return err
		default:
			if reasons := mergeConflicts(b, in); len(reasons) > 0 {
				return apperror.NewValidationFailed("receipt does not match the batch on hand", reasons)
			}
			s.applyPrices(b, in)
			b.Put(in.Quantity)
			if err := s.repo.Update(ctx, b); err != nil {
				return err
			}
		}

		m := entity.NewStockMovement(tc, entity.MovementReceipt, b.ID, b.ProductID, in.Quantity, b.UnitCost)
		m.DocumentID, m.LineID = in.DocumentID, in.LineID
		if err := s.repo.AppendMovements(ctx, []entity.StockMovement{m}); err != nil {
			return fmt.Errorf("append movements: %w", err)
		}
		result.Batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Warnings) > 0 {
		logger.Warn(ctx, "restock accepted with pricing warnings",
			"product_id", in.ProductID,
			"batch", in.BatchNumber,
			"warnings", result.Warnings,
		)
	}
	return result, nil
}

// mergeConflicts lists what would revalue stock already on hand in b.
func mergeConflicts(b *Batch, in RestockInput) []string {
	if !b.QuantityOnHand.IsPositive() {
		return nil
	}
	var reasons []string
	if cost := types.RoundMoney(in.UnitCost); !cost.Equal(b.UnitCost) {
		reasons = append(reasons, fmt.Sprintf("batch %s is held at unit cost %s, receipt has %s",
			b.BatchNumber, b.UnitCost.StringFixed(2), cost.StringFixed(2)))
	}
	if in.ExpiryDate != nil && b.ExpiryDate != nil && !sameDay(*in.ExpiryDate, *b.ExpiryDate) {
		reasons = append(reasons, fmt.Sprintf("batch %s expires %s, receipt has %s",
			b.BatchNumber, b.ExpiryDate.Format(time.DateOnly), in.ExpiryDate.Format(time.DateOnly)))
	}
	return reasons
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Service) applyPrices(b *Batch, in RestockInput) {
	b.UnitCost = types.RoundMoney(in.UnitCost)
	b.SalePrice = types.RoundMoney(in.SalePrice)
	if in.MRP.Valid {
		b.MRP = decimal.NewNullDecimal(types.RoundMoney(in.MRP.Decimal))
	}
	if in.ExpiryDate != nil {
		b.ExpiryDate = in.ExpiryDate
	}
}

// ReverseInput puts Quantity back into a batch on behalf of Reference,
// which identifies the source line being undone.
type ReverseInput struct {
	BatchID   id.ID
	Quantity  types.Quantity
	Reference string

	DocumentID *id.ID
	LineID     *id.ID
}

// Reverse credits a batch once per reference. A repeated reference fails
// with ALREADY_REVERSED and leaves the batch untouched.
func (s *Service) Reverse(ctx context.Context, tc tenant.Context, in ReverseInput) (*Batch, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("reversal quantity must be positive")
	}
	if in.Reference == "" {
		return nil, apperror.NewValidation("reversal reference is required")
	}

	var out *Batch
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, tc, in.BatchID)
		if err != nil {
			return err
		}
		if err := s.repo.LockProduct(ctx, tc, b.ProductID); err != nil {
			return err
		}
		if err := s.repo.ClaimReversal(ctx, tc, in.Reference); err != nil {
			return err
		}

		// Re-read under the product lock.
		b, err = s.repo.GetByID(ctx, tc, in.BatchID)
		if err != nil {
			return err
		}
		b.Put(in.Quantity)
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}

		m := entity.NewStockMovement(tc, entity.MovementReversal, b.ID, b.ProductID, in.Quantity, b.UnitCost)
		m.DocumentID, m.LineID = in.DocumentID, in.LineID
		m.Reference = in.Reference
		if err := s.repo.AppendMovements(ctx, []entity.StockMovement{m}); err != nil {
			return fmt.Errorf("append movements: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock reversed",
		"batch_id", in.BatchID,
		"quantity", in.Quantity.String(),
		"reference", in.Reference,
	)
	return out, nil
}

// Available is the quantity on hand across non-expired batches.
func (s *Service) Available(ctx context.Context, tc tenant.Context, productID id.ID) (types.Quantity, error) {
	if err := tc.Validate(); err != nil {
		return types.Zero(), err
	}
	batches, err := s.repo.ListByProduct(ctx, tc, productID)
	if err != nil {
		return types.Zero(), err
	}
	now := s.now()
	total := types.Zero()
	for _, b := range batches {
		if b.ExpiredAt(now) {
			continue
		}
		total = total.Add(b.QuantityOnHand)
	}
	return total, nil
}

// ListBatches returns the product's batches in FEFO order.
func (s *Service) ListBatches(ctx context.Context, tc tenant.Context, productID id.ID) ([]*Batch, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	batches, err := s.repo.ListByProduct(ctx, tc, productID)
	if err != nil {
		return nil, err
	}
	SortFEFO(batches)
	return batches, nil
}

// Movements returns the product's stock movement history.
func (s *Service) Movements(ctx context.Context, tc tenant.Context, productID id.ID) ([]entity.StockMovement, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, tc, productID)
}
