// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"

	"libracirc/internal/identity"
)

var dialect = goqu.Dialect("postgres")

// service implements the Service interface on Postgres.
type service struct {
	db *sqlx.DB
}

// NewService creates a new catalog service instance.
func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

// AddBook creates a new title with all copies on the shelf.
func (s *service) AddBook(ctx context.Context, title, author, category string, totalCopies int) (*Book, error) {
	if title == "" || author == "" {
		return nil, fmt.Errorf("title and author are required")
	}
	if totalCopies < 1 {
		return nil, fmt.Errorf("total copies must be at least 1")
	}

	book := &Book{
		ID:          identity.New().Canonical(),
		Title:       title,
		Author:      author,
		Category:    category,
		Copies:      totalCopies,
		TotalCopies: totalCopies,
	}

	query := `
		INSERT INTO books (id, title, author, category, copies, total_copies)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		book.ID, book.Title, book.Author, book.Category, book.Copies, book.TotalCopies,
	).Scan(&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a title by its flexible identifier.
func (s *service) GetBook(ctx context.Context, id identity.FlexID) (*Book, error) {
	query, args, err := dialect.
		From("books").
		Select("id", "title", "author", "category", "copies", "total_copies", "borrow_count", "created_at", "updated_at").
		Where(id.Match("id")).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}

	book := &Book{}
	if err := s.db.GetContext(ctx, book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

// Search finds titles by title, author or category substring.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	pattern := "%" + query + "%"
	sqlQuery := `
		SELECT id, title, author, category, copies, total_copies, borrow_count, created_at, updated_at
		FROM books
		WHERE title ILIKE $1 OR author ILIKE $1 OR category ILIKE $1
		ORDER BY title
		LIMIT 50
	`

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, sqlQuery, pattern); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	return books, nil
}

// DecrementOnBorrow is a single check-then-act statement against the
// persisted value, so concurrent borrows of the last copy cannot both
// succeed.
func (s *service) DecrementOnBorrow(ctx context.Context, id identity.FlexID) error {
	query, args, err := dialect.
		Update("books").
		Set(goqu.Record{
			"copies":       goqu.L("copies - 1"),
			"borrow_count": goqu.L("borrow_count + 1"),
			"updated_at":   goqu.L("NOW()"),
		}).
		Where(id.Match("id"), goqu.C("copies").Gt(0)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build decrement query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("decrement copies: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either the book is gone or no copy qualified.
		if _, getErr := s.GetBook(ctx, id); getErr != nil {
			return getErr
		}
		return ErrOutOfStock
	}

	return nil
}

// IncrementOnReturn puts one copy back on the shelf.
func (s *service) IncrementOnReturn(ctx context.Context, id identity.FlexID) error {
	query, args, err := dialect.
		Update("books").
		Set(goqu.Record{
			"copies":     goqu.L("copies + 1"),
			"updated_at": goqu.L("NOW()"),
		}).
		Where(id.Match("id")).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build increment query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment copies: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}

	return nil
}

// RevertBorrow restores the copy and rolls the lifetime counter back, so a
// borrow that failed after its decrement leaves no trace in either number.
func (s *service) RevertBorrow(ctx context.Context, id identity.FlexID) error {
	query, args, err := dialect.
		Update("books").
		Set(goqu.Record{
			"copies":       goqu.L("copies + 1"),
			"borrow_count": goqu.L("borrow_count - 1"),
			"updated_at":   goqu.L("NOW()"),
		}).
		Where(id.Match("id"), goqu.C("borrow_count").Gt(0)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build revert query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("revert borrow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetBook(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("revert borrow: counter already at zero")
	}

	return nil
}
