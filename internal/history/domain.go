// internal/history/domain.go
package history

import "time"

// Action labels what happened to a loan.
type Action string

const (
	ActionBorrow Action = "borrow"
	ActionRenew  Action = "renew"
	ActionReturn Action = "return"
)

// Entry is one immutable audit record. Book and reader display fields are
// stored redundantly so history survives deletion of the originating book
// or member rows.
type Entry struct {
	ID         int64      `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	BookID     string     `json:"book_id" db:"book_id"`
	BookTitle  string     `json:"book_title" db:"book_title"`
	BookAuthor string     `json:"book_author" db:"book_author"`
	UserName   string     `json:"user_name" db:"user_name"`
	Action     Action     `json:"action" db:"action"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	IsRenewed  bool       `json:"is_renewed" db:"is_renewed"`
	RenewCount int        `json:"renew_count" db:"renew_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
