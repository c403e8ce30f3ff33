package reports

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/registers/batch"
)

// ProductSource lists the tenant catalog.
type ProductSource interface {
	List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error)
}

// BatchSource lists a product's batches.
type BatchSource interface {
	ListBatches(ctx context.Context, tc tenant.Context, productID id.ID) ([]*batch.Batch, error)
}

// DocumentSource lists billing documents.
type DocumentSource interface {
	List(ctx context.Context, tc tenant.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error)
}
