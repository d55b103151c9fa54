// internal/circulation/implementation_test.go
package circulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"libracirc/internal/catalog"
	"libracirc/internal/history"
	"libracirc/internal/identity"
	"libracirc/internal/requests"
)

type engineFixture struct {
	svc   *service
	loans *fakeStore
	books *fakeCatalog
	queue *fakeRequests
	audit *fakeHistory
	now   time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	if t != nil {
		t.Helper()
	}

	f := &engineFixture{
		loans: newFakeStore(),
		books: newFakeCatalog(),
		audit: &fakeHistory{},
		now:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	f.queue = newFakeRequests(func() time.Time { return f.now })
	f.svc = newService(f.loans, f.books, f.queue, f.audit,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestBorrowOpensLoan(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	userID := identity.New()
	book := f.books.addBook(identity.New().Canonical(), 3)

	record, err := f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
	require.NoError(t, err)

	assert.Equal(t, userID.Canonical(), record.UserID)
	assert.Equal(t, book.ID, record.BookID)
	assert.Equal(t, book.Title, record.BookTitle)
	assert.Equal(t, "Ada Reader", record.UserName)
	assert.Equal(t, f.now, record.BorrowedAt)
	assert.Equal(t, f.now.AddDate(0, 0, LoanDurationDays), record.DueDate)
	assert.True(t, record.Active())

	assert.Equal(t, 2, f.books.books[book.ID].Copies)
	assert.Equal(t, 1, f.books.books[book.ID].BorrowCount)

	entries := f.audit.byAction(history.ActionBorrow)
	require.Len(t, entries, 1)
	assert.Equal(t, userID.Canonical(), entries[0].UserID)
	assert.Equal(t, record.DueDate, entries[0].DueDate)
	assert.Nil(t, entries[0].ReturnDate)
}

func TestBorrowUnknownBook(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.Borrow(context.Background(), identity.New(), "Ada Reader", identity.New())
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestBorrowOutOfStock(t *testing.T) {
	f := newEngineFixture(t)
	book := f.books.addBook(identity.New().Canonical(), 0)

	_, err := f.svc.Borrow(context.Background(), identity.New(), "Ada Reader", identity.Parse(book.ID))
	assert.ErrorIs(t, err, catalog.ErrOutOfStock)
	assert.Empty(t, f.audit.entries)
}

func TestBorrowQuota(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	userID := identity.New()

	for i := 0; i < BorrowQuotaLimit; i++ {
		book := f.books.addBook(identity.New().Canonical(), 1)
		_, err := f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
		require.NoError(t, err)
	}

	extra := f.books.addBook(identity.New().Canonical(), 1)
	_, err := f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(extra.ID))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, f.books.books[extra.ID].Copies)

	// Returned loans still count: the quota throttles openings, not holdings.
	for id := range f.loans.records {
		require.NoError(t, f.loans.MarkReturned(ctx, id, f.now))
	}
	_, err = f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(extra.ID))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Once the openings age out of the window the reader can borrow again.
	f.advance(time.Duration(BorrowQuotaWindowDays+1) * 24 * time.Hour)
	_, err = f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(extra.ID))
	assert.NoError(t, err)
}

func TestBorrowDuplicateActiveLoan(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	userID := identity.New()
	book := f.books.addBook(identity.New().Canonical(), 5)

	record, err := f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
	assert.ErrorIs(t, err, ErrLoanExists)
	assert.Equal(t, 4, f.books.books[book.ID].Copies)

	require.NoError(t, f.loans.MarkReturned(ctx, record.ID, f.now))
	_, err = f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
	assert.NoError(t, err)
}

func TestBorrowInsertFailureRestoresInventory(t *testing.T) {
	f := newEngineFixture(t)
	book := f.books.addBook(identity.New().Canonical(), 2)
	f.loans.insertErr = errors.New("connection reset")

	_, err := f.svc.Borrow(context.Background(), identity.New(), "Ada Reader", identity.Parse(book.ID))
	require.Error(t, err)

	// Both inventory numbers are back where they started: a borrow that
	// never produced a loan record must not count in the lifetime counter.
	assert.Equal(t, 2, f.books.books[book.ID].Copies)
	assert.Equal(t, 0, f.books.books[book.ID].BorrowCount)
	assert.Empty(t, f.audit.entries)
}

func TestBorrowSucceedsWhenAuditFails(t *testing.T) {
	f := newEngineFixture(t)
	book := f.books.addBook(identity.New().Canonical(), 1)
	f.audit.appendErr = errors.New("history table unavailable")

	record, err := f.svc.Borrow(context.Background(), identity.New(), "Ada Reader", identity.Parse(book.ID))
	require.NoError(t, err)
	assert.True(t, record.Active())
	assert.Equal(t, 0, f.books.books[book.ID].Copies)
}

func (f *engineFixture) borrowAndRequest(t *testing.T, reqType requests.Type) (*BorrowRecord, *requests.BorrowRequest) {
	t.Helper()

	userID := identity.New()
	book := f.books.addBook(identity.New().Canonical(), 3)
	record, err := f.svc.Borrow(context.Background(), userID, "Ada Reader", identity.Parse(book.ID))
	require.NoError(t, err)

	request := f.queue.addPending(record.UserID, record.BookID, reqType)
	return record, request
}

func TestApproveRenewal(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeRenew)
	f.advance(10 * 24 * time.Hour)

	handled, err := f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, handled.Status)
	require.NotNil(t, handled.HandledAt)
	assert.Equal(t, f.now, *handled.HandledAt)

	renewed, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, renewed.Renewed)
	assert.Equal(t, 1, renewed.RenewCount)
	assert.Equal(t, f.now.AddDate(0, 0, RenewalExtensionDays), renewed.DueDate)
	require.NotNil(t, renewed.RenewedAt)
	assert.Equal(t, f.now, *renewed.RenewedAt)

	entries := f.audit.byAction(history.ActionRenew)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsRenewed)
	assert.Equal(t, 1, entries[0].RenewCount)
	assert.Equal(t, renewed.DueDate, entries[0].DueDate)
}

func TestApproveRenewalResetsOverdueWindow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeRenew)
	f.advance(45 * 24 * time.Hour) // well past the original due date

	stale, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, stale.IsOverdue(f.now))

	_, err = f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)

	renewed, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now.AddDate(0, 0, RenewalExtensionDays), renewed.DueDate)
	assert.False(t, renewed.IsOverdue(f.now))
}

func TestApproveReturn(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeReturn)
	assert.Equal(t, 2, f.books.books[record.BookID].Copies)
	f.advance(5 * 24 * time.Hour)

	handled, err := f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, handled.Status)

	closed, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, closed.Returned)
	require.NotNil(t, closed.ReturnedAt)
	assert.Equal(t, f.now, *closed.ReturnedAt)

	assert.Equal(t, 3, f.books.books[record.BookID].Copies)

	entries := f.audit.byAction(history.ActionReturn)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ReturnDate)
	assert.Equal(t, f.now, *entries[0].ReturnDate)
}

func TestApproveResolvesByRecordID(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	userID := identity.New()
	book := f.books.addBook(identity.New().Canonical(), 1)
	record, err := f.svc.Borrow(ctx, userID, "Ada Reader", identity.Parse(book.ID))
	require.NoError(t, err)

	// Older clients put the loan record id in the request's book field.
	request := f.queue.addPending(record.UserID, record.ID, requests.TypeReturn)

	handled, err := f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, handled.Status)

	closed, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, closed.Returned)
	assert.Equal(t, 1, f.books.books[book.ID].Copies)
}

func TestApproveOrphanedRequest(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeReturn)
	// The loan is closed out-of-band before the administrator acts.
	require.NoError(t, f.loans.MarkReturned(ctx, record.ID, f.now))
	copiesBefore := f.books.books[record.BookID].Copies

	handled, err := f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusInvalid, handled.Status)
	assert.Empty(t, handled.Reason)
	require.NotNil(t, handled.HandledAt)

	assert.Equal(t, copiesBefore, f.books.books[record.BookID].Copies)
	assert.Empty(t, f.audit.byAction(history.ActionReturn))
}

func TestApproveAlreadyHandled(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, request := f.borrowAndRequest(t, requests.TypeReturn)
	_, err := f.svc.Approve(ctx, request.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, request.ID)
	assert.ErrorIs(t, err, requests.ErrAlreadyHandled)
}

func TestApproveUnknownRequest(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.Approve(context.Background(), identity.New().Canonical())
	assert.ErrorIs(t, err, requests.ErrRequestNotFound)
}

func TestApproveReturnCompensation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeReturn)
	f.books.incrementErr = errors.New("catalog unavailable")

	_, err := f.svc.Approve(ctx, request.ID)
	require.Error(t, err)

	// Both sides are rolled back: the loan is open again and the request is
	// back in the queue for a retry.
	reopened, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, reopened.Active())

	pending, err := f.queue.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, pending.Pending())
	assert.Empty(t, f.audit.byAction(history.ActionReturn))
}

func TestApproveRenewalCompensation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, request := f.borrowAndRequest(t, requests.TypeRenew)
	f.loans.renewErr = errors.New("deadlock detected")

	_, err := f.svc.Approve(ctx, request.ID)
	require.Error(t, err)

	pending, err := f.queue.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, pending.Pending())
}

func TestRejectRequiresReason(t *testing.T) {
	f := newEngineFixture(t)

	_, request := f.borrowAndRequest(t, requests.TypeRenew)
	_, err := f.svc.Reject(context.Background(), request.ID, "   ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	pending, err := f.queue.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.True(t, pending.Pending())
}

func TestReject(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, request := f.borrowAndRequest(t, requests.TypeReturn)

	handled, err := f.svc.Reject(ctx, request.ID, "copy reported damaged on shelf check")
	require.NoError(t, err)
	assert.Equal(t, requests.StatusRejected, handled.Status)
	assert.Equal(t, "copy reported damaged on shelf check", handled.Reason)
	require.NotNil(t, handled.HandledAt)

	// Rejection never touches the loan or inventory.
	open, err := f.loans.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, open.Active())

	_, err = f.svc.Reject(ctx, request.ID, "second opinion")
	assert.ErrorIs(t, err, requests.ErrAlreadyHandled)
}

// Copies on the shelf plus open loans must always equal the nominal stock,
// no matter how borrows, approvals and rejections interleave.
func TestInventoryConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newEngineFixture(nil)
		ctx := context.Background()

		total := rapid.IntRange(1, 4).Draw(t, "total")
		book := f.books.addBook(identity.New().Canonical(), total)
		bookID := identity.Parse(book.ID)

		readers := make([]identity.FlexID, rapid.IntRange(1, 4).Draw(t, "readers"))
		for i := range readers {
			readers[i] = identity.New()
		}

		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			reader := readers[rapid.IntRange(0, len(readers)-1).Draw(t, "reader")]

			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_, _ = f.svc.Borrow(ctx, reader, "Reader", bookID)
			case 1:
				request := f.queue.addPending(reader.Canonical(), book.ID, requests.TypeReturn)
				_, _ = f.svc.Approve(ctx, request.ID)
			case 2:
				request := f.queue.addPending(reader.Canonical(), book.ID, requests.TypeRenew)
				_, _ = f.svc.Approve(ctx, request.ID)
			}
			f.advance(time.Hour)

			got := f.books.books[book.ID].Copies + f.loans.activeCount(book.ID)
			if got != total {
				t.Fatalf("conservation broken after step %d: copies=%d active=%d total=%d",
					i, f.books.books[book.ID].Copies, f.loans.activeCount(book.ID), total)
			}
		}
	})
}
