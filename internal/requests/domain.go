// internal/requests/domain.go
package requests

import (
	"errors"
	"time"
)

// Type classifies what a reader is asking for.
type Type string

const (
	TypeRenew  Type = "renew"
	TypeReturn Type = "return"
)

// Status is the approval state of a request. A request starts pending and
// transitions exactly once to a terminal state, after which it is immutable.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusInvalid  Status = "invalid"
)

var (
	ErrRequestNotFound  = errors.New("request not found")
	ErrDuplicatePending = errors.New("a pending request of this type already exists")
	ErrAlreadyHandled   = errors.New("request has already been handled")
	ErrInvalidType      = errors.New("request type must be renew or return")
)

// BorrowRequest is a reader-submitted renewal or return request awaiting an
// administrator's decision. Book and reader display fields are snapshotted
// at submission so the queue stays readable even if the catalog changes.
type BorrowRequest struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	UserName   string     `json:"user_name" db:"user_name"`
	BookID     string     `json:"book_id" db:"book_id"`
	BookTitle  string     `json:"book_title" db:"book_title"`
	BookAuthor string     `json:"book_author" db:"book_author"`
	Type       Type       `json:"type" db:"type"`
	Status     Status     `json:"status" db:"status"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	HandledAt  *time.Time `json:"handled_at,omitempty" db:"handled_at"`
}

// Pending reports whether the request still awaits a decision.
func (r *BorrowRequest) Pending() bool {
	return r.Status == StatusPending
}

// ValidType reports whether t is one of the two accepted request types.
func ValidType(t Type) bool {
	return t == TypeRenew || t == TypeReturn
}
