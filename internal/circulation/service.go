// internal/circulation/service.go
package circulation

import (
	"context"

	"libracirc/internal/identity"
	"libracirc/internal/requests"
)

// Service defines the interface for the borrow lifecycle and the approval
// engine that gates renewals and returns behind administrator decisions.
type Service interface {
	Borrow(ctx context.Context, userID identity.FlexID, userName string, bookID identity.FlexID) (*BorrowRecord, error)
	ListActiveLoans(ctx context.Context, userID identity.FlexID) ([]*BorrowRecord, error)

	// Approve applies an administrator's approval: it locates the loan the
	// request targets, applies the renew or return transition, updates
	// inventory and appends the audit entry. A request whose loan cannot
	// be located is marked invalid and reported as success, so stale
	// requests never jam the queue.
	Approve(ctx context.Context, requestID string) (*requests.BorrowRequest, error)

	// Reject closes a pending request with a mandatory reason. No effect
	// on the loan or inventory.
	Reject(ctx context.Context, requestID, reason string) (*requests.BorrowRequest, error)
}
