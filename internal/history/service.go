// internal/history/service.go
package history

import (
	"context"

	"libracirc/internal/identity"
)

// Service defines the interface for the append-only audit log. Appends are
// best-effort from the caller's point of view: a failed append must never
// roll back the loan mutation that triggered it.
type Service interface {
	Append(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID identity.FlexID) ([]*Entry, error)
	ListByBook(ctx context.Context, bookID identity.FlexID) ([]*Entry, error)
	ListByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) ([]*Entry, error)
}
