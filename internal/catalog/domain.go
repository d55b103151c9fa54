// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrOutOfStock   = errors.New("no copies available")
)

// Book is one catalog title with its inventory counters. Copies is the
// number available right now, TotalCopies the nominal stock and BorrowCount
// a lifetime counter that only ever grows.
type Book struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	Category    string    `json:"category,omitempty" db:"category"`
	Copies      int       `json:"copies" db:"copies"`
	TotalCopies int       `json:"total_copies" db:"total_copies"`
	BorrowCount int       `json:"borrow_count" db:"borrow_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
