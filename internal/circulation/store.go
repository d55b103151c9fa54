// internal/circulation/store.go
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"

	"libracirc/internal/identity"
)

var dialect = goqu.Dialect("postgres")

const recordColumns = "id, user_id, book_id, book_title, book_author, user_name, borrowed_at, due_date, renewed, renewed_at, renew_count, returned, returned_at"

// store is the persistence boundary of the loan record lifecycle. The
// engine talks to this interface so its orchestration can be exercised
// without a database.
type store interface {
	Insert(ctx context.Context, record *BorrowRecord) error
	GetByID(ctx context.Context, id string) (*BorrowRecord, error)
	FindActiveByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) (*BorrowRecord, error)
	ListActiveByUser(ctx context.Context, userID identity.FlexID) ([]*BorrowRecord, error)
	CountOpenedSince(ctx context.Context, userID identity.FlexID, since time.Time) (int, error)
	MarkRenewed(ctx context.Context, id string, renewedAt, dueDate time.Time) (*BorrowRecord, error)
	MarkReturned(ctx context.Context, id string, returnedAt time.Time) error
	Reopen(ctx context.Context, id string) error
}

// postgresStore implements store on Postgres.
type postgresStore struct {
	db *sqlx.DB
}

func newPostgresStore(db *sqlx.DB) *postgresStore {
	return &postgresStore{db: db}
}

func (p *postgresStore) Insert(ctx context.Context, record *BorrowRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO borrow_records
			(id, user_id, book_id, book_title, book_author, user_name, borrowed_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.UserID, record.BookID, record.BookTitle, record.BookAuthor,
		record.UserName, record.BorrowedAt, record.DueDate)
	if err != nil {
		return fmt.Errorf("insert borrow record: %w", err)
	}
	return nil
}

func (p *postgresStore) GetByID(ctx context.Context, id string) (*BorrowRecord, error) {
	record := &BorrowRecord{}
	err := p.db.GetContext(ctx, record,
		`SELECT `+recordColumns+` FROM borrow_records WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get borrow record: %w", err)
	}
	return record, nil
}

// FindActiveByUserAndBook is the canonical engine lookup. It matches both
// identifier representations and tolerates multiple active records by
// taking the most recently borrowed one.
func (p *postgresStore) FindActiveByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) (*BorrowRecord, error) {
	query, args, err := dialect.
		From("borrow_records").
		Select(goqu.L(recordColumns)).
		Where(
			userID.Match("user_id"),
			bookID.Match("book_id"),
			goqu.C("returned").IsFalse(),
		).
		Order(goqu.C("borrowed_at").Desc()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build active record query: %w", err)
	}

	record := &BorrowRecord{}
	if err := p.db.GetContext(ctx, record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("find active record: %w", err)
	}
	return record, nil
}

func (p *postgresStore) ListActiveByUser(ctx context.Context, userID identity.FlexID) ([]*BorrowRecord, error) {
	query, args, err := dialect.
		From("borrow_records").
		Select(goqu.L(recordColumns)).
		Where(userID.Match("user_id"), goqu.C("returned").IsFalse()).
		Order(goqu.C("borrowed_at").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build active loans query: %w", err)
	}

	var records []*BorrowRecord
	if err := p.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	return records, nil
}

func (p *postgresStore) CountOpenedSince(ctx context.Context, userID identity.FlexID, since time.Time) (int, error) {
	query, args, err := dialect.
		From("borrow_records").
		Select(goqu.COUNT("*")).
		Where(userID.Match("user_id"), goqu.C("borrowed_at").Gte(since)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build quota query: %w", err)
	}

	var count int
	if err := p.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count recent loans: %w", err)
	}
	return count, nil
}

func (p *postgresStore) MarkRenewed(ctx context.Context, id string, renewedAt, dueDate time.Time) (*BorrowRecord, error) {
	record := &BorrowRecord{}
	err := p.db.GetContext(ctx, record, `
		UPDATE borrow_records
		SET renewed = TRUE, renewed_at = $2, renew_count = renew_count + 1, due_date = $3
		WHERE id = $1 AND NOT returned
		RETURNING `+recordColumns, id, renewedAt, dueDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("mark record renewed: %w", err)
	}
	return record, nil
}

func (p *postgresStore) MarkReturned(ctx context.Context, id string, returnedAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE borrow_records
		SET returned = TRUE, returned_at = $2
		WHERE id = $1 AND NOT returned
	`, id, returnedAt)
	if err != nil {
		return fmt.Errorf("mark record returned: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Reopen undoes a return. Compensation path only.
func (p *postgresStore) Reopen(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE borrow_records
		SET returned = FALSE, returned_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reopen borrow record: %w", err)
	}
	return nil
}
