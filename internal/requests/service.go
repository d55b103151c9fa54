// internal/requests/service.go
package requests

import (
	"context"

	"libracirc/internal/identity"
)

// SubmitParams carries a reader's renewal or return request. BookTitle and
// BookAuthor are fallbacks used only when the catalog cannot resolve the
// book at submission time.
type SubmitParams struct {
	UserID     identity.FlexID
	UserName   string
	BookID     identity.FlexID
	BookTitle  string
	BookAuthor string
	Type       Type
}

// Service defines the interface for the approval queue.
type Service interface {
	Submit(ctx context.Context, p SubmitParams) (*BorrowRequest, error)
	Get(ctx context.Context, id string) (*BorrowRequest, error)
	ListByUser(ctx context.Context, userID identity.FlexID, limit int) ([]*BorrowRequest, error)
	ListAll(ctx context.Context) ([]*BorrowRequest, error)

	// MarkHandled transitions a pending request into a terminal state. The
	// precondition check and the status write are one compare-and-swap
	// statement, so two racing administrators cannot both succeed.
	MarkHandled(ctx context.Context, id string, to Status, reason string) (*BorrowRequest, error)

	// Reopen reverts a request to pending. Compensation path only, used by
	// the approval engine when a claimed request's loan mutation fails.
	Reopen(ctx context.Context, id string) error
}
