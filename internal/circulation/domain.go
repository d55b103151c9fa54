// internal/circulation/domain.go
package circulation

import (
	"errors"
	"math"
	"time"
)

const (
	// LoanDurationDays is the fixed loan window granted at borrow time.
	LoanDurationDays = 30

	// RenewalExtensionDays is the window granted by an approved renewal,
	// counted from the renewal moment rather than the original due date.
	// Lateness does not compound against the reader once a renewal is
	// granted.
	RenewalExtensionDays = 30

	// BorrowQuotaLimit caps how many loans a reader may open inside
	// BorrowQuotaWindowDays. A simple anti-abuse throttle, not
	// renegotiable per reader.
	BorrowQuotaLimit      = 5
	BorrowQuotaWindowDays = 30
)

var (
	ErrRecordNotFound = errors.New("loan record not found")
	ErrLoanExists     = errors.New("reader already has an active loan for this book")
	ErrQuotaExceeded  = errors.New("borrowing quota exceeded")
	ErrReasonRequired = errors.New("a rejection reason is required")
	ErrInvalidOutcome = errors.New("decision outcome must be approve or reject")
)

// BorrowRecord is one loan of one copy to one reader. Created at borrow,
// mutated in place by renewals and by the final return, never deleted.
// Display fields are captured at creation so the record stays readable
// independently of the catalog and member tables.
type BorrowRecord struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	BookID     string     `json:"book_id" db:"book_id"`
	BookTitle  string     `json:"book_title" db:"book_title"`
	BookAuthor string     `json:"book_author" db:"book_author"`
	UserName   string     `json:"user_name" db:"user_name"`
	BorrowedAt time.Time  `json:"borrowed_at" db:"borrowed_at"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	Renewed    bool       `json:"renewed" db:"renewed"`
	RenewedAt  *time.Time `json:"renewed_at,omitempty" db:"renewed_at"`
	RenewCount int        `json:"renew_count" db:"renew_count"`
	Returned   bool       `json:"returned" db:"returned"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" db:"returned_at"`
}

// Active reports whether the loan is still open.
func (r *BorrowRecord) Active() bool {
	return !r.Returned
}

// IsOverdue reports whether an open loan is past its due date.
func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return !r.Returned && r.DueDate.Before(now)
}

// DaysRemaining is the ceiling of the time left until the due date in days.
// Zero once returned, negative once overdue.
func (r *BorrowRecord) DaysRemaining(now time.Time) int {
	if r.Returned {
		return 0
	}
	return int(math.Ceil(r.DueDate.Sub(now).Hours() / 24))
}
