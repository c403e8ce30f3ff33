// Package tx defines the unit-of-work boundary domain services post through.
// Implementations live in infrastructure/storage/postgres and
// infrastructure/storage/memory.
package tx

import (
	"context"
)

// Manager runs fn as one unit of work. Every repository call made with the
// ctx passed to fn joins it; an error from fn discards all of them. A call
// on a ctx that is already inside a unit of work nests (savepoint) rather
// than opening a second one.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager is implemented by stores that can give a reader one
// consistent view across several queries. Reports use it when available.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
