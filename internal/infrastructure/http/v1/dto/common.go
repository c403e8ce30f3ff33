// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"medcore/internal/core/id"
	"medcore/internal/domain"
)

// --- Envelope ---

// Envelope wraps every successful response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// --- Pagination ---

// ListQuery contains list parameters shared by all collections.
type ListQuery struct {
	Search  string `form:"search"`
	Status  string `form:"status"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters to a domain filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	return domain.ListFilter{
		Search:  q.Search,
		Status:  q.Status,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}.Normalize()
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult maps a domain page with fn.
func FromListResult[S, T any](r domain.ListResult[S], fn func(S) T) ListResponse[T] {
	items := make([]T, len(r.Items))
	for i, v := range r.Items {
		items[i] = fn(v)
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}
