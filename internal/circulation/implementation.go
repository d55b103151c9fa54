// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libracirc/internal/catalog"
	"libracirc/internal/history"
	"libracirc/internal/identity"
	"libracirc/internal/requests"
)

// service implements the Service interface. Cross-entity updates follow a
// claim-then-mutate saga: the request status is compare-and-swapped out of
// pending before the loan is touched, and failed mutations are compensated.
type service struct {
	records  store
	catalog  catalog.Service
	requests requests.Service
	history  history.Service
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(db *sqlx.DB, catalogSvc catalog.Service, requestsSvc requests.Service, historySvc history.Service, logger *slog.Logger) Service {
	return newService(newPostgresStore(db), catalogSvc, requestsSvc, historySvc, logger)
}

func newService(records store, catalogSvc catalog.Service, requestsSvc requests.Service, historySvc history.Service, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		records:  records,
		catalog:  catalogSvc,
		requests: requestsSvc,
		history:  historySvc,
		logger:   logger,
		tracer:   otel.Tracer("libracirc/circulation"),
		now:      time.Now,
	}
}

// Borrow opens a new loan: inventory is reserved with an atomic decrement,
// the record is created with a fixed 30-day window, and a borrow audit
// entry is appended.
func (s *service) Borrow(ctx context.Context, userID identity.FlexID, userName string, bookID identity.FlexID) (*BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.String("user.id", userID.Canonical()),
			attribute.String("book.id", bookID.Canonical()),
		),
	)
	defer span.End()

	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.Copies <= 0 {
		return nil, catalog.ErrOutOfStock
	}

	now := s.now()

	since := now.AddDate(0, 0, -BorrowQuotaWindowDays)
	opened, err := s.records.CountOpenedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if opened >= BorrowQuotaLimit {
		return nil, ErrQuotaExceeded
	}

	// Lookup-before-create: at most one active loan per (reader, book).
	_, err = s.records.FindActiveByUserAndBook(ctx, userID, bookID)
	if err == nil {
		return nil, ErrLoanExists
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	if err := s.catalog.DecrementOnBorrow(ctx, bookID); err != nil {
		return nil, err
	}

	record := &BorrowRecord{
		ID:         identity.New().Canonical(),
		UserID:     userID.Canonical(),
		BookID:     bookID.Canonical(),
		BookTitle:  book.Title,
		BookAuthor: book.Author,
		UserName:   userName,
		BorrowedAt: now,
		DueDate:    now.AddDate(0, 0, LoanDurationDays),
	}

	if err := s.records.Insert(ctx, record); err != nil {
		s.logger.Error("borrow record insert failed, compensating inventory",
			"book_id", bookID.Canonical(), "error", err)
		if compErr := s.catalog.RevertBorrow(ctx, bookID); compErr != nil {
			s.logger.Error("inventory compensation failed",
				"book_id", bookID.Canonical(), "error", compErr)
		}
		return nil, fmt.Errorf("create borrow record: %w", err)
	}

	s.appendAudit(ctx, history.ActionBorrow, record, nil)

	return record, nil
}

// ListActiveLoans returns a reader's open loans, most recent first.
func (s *service) ListActiveLoans(ctx context.Context, userID identity.FlexID) ([]*BorrowRecord, error) {
	return s.records.ListActiveByUser(ctx, userID)
}

// Approve drives the pending → approved transition and the loan mutation it
// implies. A request whose loan cannot be located becomes invalid instead
// of failing, so the queue never jams on stale requests.
func (s *service) Approve(ctx context.Context, requestID string) (*requests.BorrowRequest, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.approve",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.Pending() {
		return nil, requests.ErrAlreadyHandled
	}
	if !requests.ValidType(request.Type) {
		return nil, requests.ErrInvalidType
	}

	record := s.resolveRecord(ctx, request)
	if record == nil {
		// Orphaned: the loan was closed through another path before the
		// administrator acted. Terminal state invalid, reported as success.
		span.SetAttributes(attribute.Bool("request.orphaned", true))
		s.logger.Info("request has no matching active loan, marking invalid",
			"request_id", requestID, "user_id", request.UserID, "book_id", request.BookID)
		return s.requests.MarkHandled(ctx, requestID, requests.StatusInvalid, "")
	}

	// Claim the request before mutating the loan. The CAS closes the race
	// between two administrators deciding the same request.
	claimed, err := s.requests.MarkHandled(ctx, requestID, requests.StatusApproved, "")
	if err != nil {
		return nil, err
	}

	switch request.Type {
	case requests.TypeRenew:
		if err := s.applyRenewal(ctx, record); err != nil {
			s.compensateClaim(ctx, requestID)
			return nil, err
		}
	case requests.TypeReturn:
		if err := s.applyReturn(ctx, record); err != nil {
			s.compensateClaim(ctx, requestID)
			return nil, err
		}
	}

	return claimed, nil
}

// Reject closes a pending request without touching the loan or inventory.
func (s *service) Reject(ctx context.Context, requestID, reason string) (*requests.BorrowRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return s.requests.MarkHandled(ctx, requestID, requests.StatusRejected, reason)
}

// resolveRecord locates the loan a request targets. The request references
// it only by business key, so first try the request's book field as a
// record id (older client payloads conflated the two), then fall back to
// the active-loan lookup. Nil means orphaned.
func (s *service) resolveRecord(ctx context.Context, request *requests.BorrowRequest) *BorrowRecord {
	if record, err := s.records.GetByID(ctx, identity.Parse(request.BookID).Canonical()); err == nil && record.Active() {
		return record
	}

	record, err := s.records.FindActiveByUserAndBook(ctx,
		identity.Parse(request.UserID), identity.Parse(request.BookID))
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			s.logger.Warn("active loan lookup failed", "request_id", request.ID, "error", err)
		}
		return nil
	}
	return record
}

func (s *service) applyRenewal(ctx context.Context, record *BorrowRecord) error {
	now := s.now()
	renewed, err := s.records.MarkRenewed(ctx, record.ID, now, now.AddDate(0, 0, RenewalExtensionDays))
	if err != nil {
		return fmt.Errorf("renew loan: %w", err)
	}

	s.appendAudit(ctx, history.ActionRenew, renewed, nil)
	return nil
}

func (s *service) applyReturn(ctx context.Context, record *BorrowRecord) error {
	now := s.now()
	if err := s.records.MarkReturned(ctx, record.ID, now); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	if err := s.catalog.IncrementOnReturn(ctx, identity.Parse(record.BookID)); err != nil {
		s.logger.Error("inventory increment failed, reopening loan",
			"record_id", record.ID, "error", err)
		if compErr := s.records.Reopen(ctx, record.ID); compErr != nil {
			s.logger.Error("loan reopen compensation failed",
				"record_id", record.ID, "error", compErr)
		}
		return fmt.Errorf("restock on return: %w", err)
	}

	record.Returned = true
	record.ReturnedAt = &now
	s.appendAudit(ctx, history.ActionReturn, record, &now)
	return nil
}

// compensateClaim reverts a claimed request to pending after a failed loan
// mutation so the administrator can retry.
func (s *service) compensateClaim(ctx context.Context, requestID string) {
	if err := s.requests.Reopen(ctx, requestID); err != nil {
		s.logger.Error("request compensation failed", "request_id", requestID, "error", err)
	}
}

// appendAudit writes the history entry for a successful mutation. Audit
// failure is non-fatal: the loan state change is authoritative and is never
// rolled back for the sake of the trail.
func (s *service) appendAudit(ctx context.Context, action history.Action, record *BorrowRecord, returnDate *time.Time) {
	entry := history.Entry{
		UserID:     record.UserID,
		BookID:     record.BookID,
		BookTitle:  record.BookTitle,
		BookAuthor: record.BookAuthor,
		UserName:   record.UserName,
		Action:     action,
		BorrowDate: record.BorrowedAt,
		DueDate:    record.DueDate,
		ReturnDate: returnDate,
		IsRenewed:  record.Renewed,
		RenewCount: record.RenewCount,
	}

	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed after successful mutation",
			"action", string(action), "record_id", record.ID, "error", err)
	}
}
