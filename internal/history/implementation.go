// internal/history/implementation.go
package history

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libracirc/internal/identity"
)

var dialect = goqu.Dialect("postgres")

const entryColumns = "id, user_id, book_id, book_title, book_author, user_name, action, borrow_date, due_date, return_date, is_renewed, renew_count, created_at"

// service implements the Service interface on an append-only table.
type service struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewService creates a new audit log instance.
func NewService(db *sqlx.DB) Service {
	return &service{
		db:     db,
		tracer: otel.Tracer("libracirc/history"),
	}
}

// Append writes one audit entry. Rows are never updated or deleted.
func (s *service) Append(ctx context.Context, entry Entry) error {
	ctx, span := s.tracer.Start(ctx, "history.append",
		trace.WithAttributes(
			attribute.String("history.action", string(entry.Action)),
			attribute.String("history.user_id", entry.UserID),
			attribute.String("history.book_id", entry.BookID),
		),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrow_history
			(user_id, book_id, book_title, book_author, user_name, action,
			 borrow_date, due_date, return_date, is_renewed, renew_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.UserID, entry.BookID, entry.BookTitle, entry.BookAuthor, entry.UserName,
		string(entry.Action), entry.BorrowDate, entry.DueDate, entry.ReturnDate,
		entry.IsRenewed, entry.RenewCount)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("append history entry: %w", err)
	}

	return nil
}

// ListByUser returns a reader's history, most recent first.
func (s *service) ListByUser(ctx context.Context, userID identity.FlexID) ([]*Entry, error) {
	return s.list(ctx, userID.Match("user_id"))
}

// ListByBook returns a title's history, most recent first.
func (s *service) ListByBook(ctx context.Context, bookID identity.FlexID) ([]*Entry, error) {
	return s.list(ctx, bookID.Match("book_id"))
}

// ListByUserAndBook returns one loan relationship's history, most recent first.
func (s *service) ListByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) ([]*Entry, error) {
	return s.list(ctx, goqu.And(userID.Match("user_id"), bookID.Match("book_id")))
}

func (s *service) list(ctx context.Context, where goqu.Expression) ([]*Entry, error) {
	query, args, err := dialect.
		From("borrow_history").
		Select(goqu.L(entryColumns)).
		Where(where).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []*Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return entries, nil
}
