// internal/requests/implementation.go
package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"

	"libracirc/internal/catalog"
	"libracirc/internal/identity"
)

var dialect = goqu.Dialect("postgres")

const requestColumns = "id, user_id, user_name, book_id, book_title, book_author, type, status, reason, created_at, handled_at"

// service implements the Service interface.
type service struct {
	db      *sqlx.DB
	catalog catalog.Service
}

// NewService creates a new approval queue instance.
func NewService(db *sqlx.DB, catalogSvc catalog.Service) Service {
	return &service{db: db, catalog: catalogSvc}
}

// Submit persists a new pending request. At most one pending request may
// exist per (user, book, type), checked with the flexible-identifier
// predicate because older rows may carry either identifier representation.
func (s *service) Submit(ctx context.Context, p SubmitParams) (*BorrowRequest, error) {
	if !ValidType(p.Type) {
		return nil, ErrInvalidType
	}
	if p.UserID.IsZero() || p.BookID.IsZero() {
		return nil, fmt.Errorf("user and book identifiers are required")
	}

	query, args, err := dialect.
		From("borrow_requests").
		Select(goqu.L("1")).
		Where(
			p.UserID.Match("user_id"),
			p.BookID.Match("book_id"),
			goqu.C("type").Eq(string(p.Type)),
			goqu.C("status").Eq(string(StatusPending)),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build duplicate check: %w", err)
	}

	var exists int
	err = s.db.GetContext(ctx, &exists, query, args...)
	if err == nil {
		return nil, ErrDuplicatePending
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check pending requests: %w", err)
	}

	title, author := p.BookTitle, p.BookAuthor
	if book, bookErr := s.catalog.GetBook(ctx, p.BookID); bookErr == nil {
		title, author = book.Title, book.Author
	}

	request := &BorrowRequest{
		ID:         identity.New().Canonical(),
		UserID:     p.UserID.Canonical(),
		UserName:   p.UserName,
		BookID:     p.BookID.Canonical(),
		BookTitle:  title,
		BookAuthor: author,
		Type:       p.Type,
		Status:     StatusPending,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO borrow_requests (id, user_id, user_name, book_id, book_title, book_author, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, request.ID, request.UserID, request.UserName, request.BookID,
		request.BookTitle, request.BookAuthor, string(request.Type), string(request.Status),
	).Scan(&request.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	return request, nil
}

// Get loads one request by its identifier.
func (s *service) Get(ctx context.Context, id string) (*BorrowRequest, error) {
	request := &BorrowRequest{}
	err := s.db.GetContext(ctx, request,
		`SELECT `+requestColumns+` FROM borrow_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return request, nil
}

// ListByUser returns the reader's most recent requests, newest first.
func (s *service) ListByUser(ctx context.Context, userID identity.FlexID, limit int) ([]*BorrowRequest, error) {
	query, args, err := dialect.
		From("borrow_requests").
		Select(goqu.L(requestColumns)).
		Where(userID.Match("user_id")).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var list []*BorrowRequest
	if err := s.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return list, nil
}

// ListAll returns the full queue, newest first.
func (s *service) ListAll(ctx context.Context) ([]*BorrowRequest, error) {
	var list []*BorrowRequest
	err := s.db.SelectContext(ctx, &list,
		`SELECT `+requestColumns+` FROM borrow_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all requests: %w", err)
	}
	return list, nil
}

// MarkHandled is the compare-and-swap out of pending. Rows affected zero
// means either the request is gone or someone else already handled it.
func (s *service) MarkHandled(ctx context.Context, id string, to Status, reason string) (*BorrowRequest, error) {
	if to == StatusPending {
		return nil, fmt.Errorf("cannot transition a request back to pending")
	}

	request := &BorrowRequest{}
	err := s.db.GetContext(ctx, request, `
		UPDATE borrow_requests
		SET status = $2, reason = $3, handled_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, id, string(to), reason)
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark request handled: %w", err)
	}

	// CAS missed: distinguish absent from already handled.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyHandled
}

// Reopen reverts a claimed request to pending so a failed approval can be
// retried. Not reachable from any HTTP surface.
func (s *service) Reopen(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE borrow_requests
		SET status = 'pending', reason = '', handled_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reopen request: %w", err)
	}
	return nil
}
