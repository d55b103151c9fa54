// internal/catalog/service.go
package catalog

import (
	"context"

	"libracirc/internal/identity"
)

// Service defines the interface for the catalog and its inventory ledger.
type Service interface {
	AddBook(ctx context.Context, title, author, category string, totalCopies int) (*Book, error)
	GetBook(ctx context.Context, id identity.FlexID) (*Book, error)
	Search(ctx context.Context, query string) ([]*Book, error)

	// DecrementOnBorrow atomically takes one copy off the shelf and bumps
	// the lifetime borrow counter. Fails with ErrOutOfStock when no copy
	// is available at the moment the statement runs.
	DecrementOnBorrow(ctx context.Context, id identity.FlexID) error

	// IncrementOnReturn unconditionally puts one copy back. Idempotency is
	// the caller's responsibility.
	IncrementOnReturn(ctx context.Context, id identity.FlexID) error

	// RevertBorrow undoes a decrement whose loan record never materialized:
	// the copy goes back on the shelf and the lifetime borrow counter is
	// rolled back. Compensation path only.
	RevertBorrow(ctx context.Context, id identity.FlexID) error
}
