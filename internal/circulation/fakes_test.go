// internal/circulation/fakes_test.go
package circulation

import (
	"context"
	"sort"
	"time"

	"libracirc/internal/catalog"
	"libracirc/internal/history"
	"libracirc/internal/identity"
	"libracirc/internal/requests"
)

// In-memory doubles for the engine's collaborators. Error fields inject
// failures to exercise the compensation paths.

type fakeCatalog struct {
	books        map[string]*catalog.Book
	decrementErr error
	incrementErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{books: make(map[string]*catalog.Book)}
}

func (f *fakeCatalog) addBook(id string, copies int) *catalog.Book {
	book := &catalog.Book{
		ID:          id,
		Title:       "Title of " + id,
		Author:      "Author of " + id,
		Copies:      copies,
		TotalCopies: copies,
	}
	f.books[id] = book
	return book
}

func (f *fakeCatalog) AddBook(ctx context.Context, title, author, category string, totalCopies int) (*catalog.Book, error) {
	book := f.addBook(identity.New().Canonical(), totalCopies)
	book.Title, book.Author, book.Category = title, author, category
	return book, nil
}

func (f *fakeCatalog) GetBook(ctx context.Context, id identity.FlexID) (*catalog.Book, error) {
	book, ok := f.books[id.Canonical()]
	if !ok {
		return nil, catalog.ErrBookNotFound
	}
	clone := *book
	return &clone, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]*catalog.Book, error) {
	return nil, nil
}

func (f *fakeCatalog) DecrementOnBorrow(ctx context.Context, id identity.FlexID) error {
	if f.decrementErr != nil {
		return f.decrementErr
	}
	book, ok := f.books[id.Canonical()]
	if !ok {
		return catalog.ErrBookNotFound
	}
	if book.Copies <= 0 {
		return catalog.ErrOutOfStock
	}
	book.Copies--
	book.BorrowCount++
	return nil
}

func (f *fakeCatalog) IncrementOnReturn(ctx context.Context, id identity.FlexID) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	book, ok := f.books[id.Canonical()]
	if !ok {
		return catalog.ErrBookNotFound
	}
	book.Copies++
	return nil
}

func (f *fakeCatalog) RevertBorrow(ctx context.Context, id identity.FlexID) error {
	book, ok := f.books[id.Canonical()]
	if !ok {
		return catalog.ErrBookNotFound
	}
	book.Copies++
	book.BorrowCount--
	return nil
}

type fakeStore struct {
	records   map[string]*BorrowRecord
	insertErr error
	renewErr  error
	returnErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*BorrowRecord)}
}

func (f *fakeStore) Insert(ctx context.Context, record *BorrowRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*BorrowRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeStore) FindActiveByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) (*BorrowRecord, error) {
	var matches []*BorrowRecord
	for _, record := range f.records {
		if record.Returned {
			continue
		}
		if identity.Parse(record.UserID).Equal(userID) && identity.Parse(record.BookID).Equal(bookID) {
			matches = append(matches, record)
		}
	}
	if len(matches) == 0 {
		return nil, ErrRecordNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].BorrowedAt.After(matches[j].BorrowedAt)
	})
	clone := *matches[0]
	return &clone, nil
}

func (f *fakeStore) ListActiveByUser(ctx context.Context, userID identity.FlexID) ([]*BorrowRecord, error) {
	var records []*BorrowRecord
	for _, record := range f.records {
		if !record.Returned && identity.Parse(record.UserID).Equal(userID) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].BorrowedAt.After(records[j].BorrowedAt)
	})
	return records, nil
}

func (f *fakeStore) CountOpenedSince(ctx context.Context, userID identity.FlexID, since time.Time) (int, error) {
	count := 0
	for _, record := range f.records {
		if identity.Parse(record.UserID).Equal(userID) && !record.BorrowedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkRenewed(ctx context.Context, id string, renewedAt, dueDate time.Time) (*BorrowRecord, error) {
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	record, ok := f.records[id]
	if !ok || record.Returned {
		return nil, ErrRecordNotFound
	}
	record.Renewed = true
	record.RenewedAt = &renewedAt
	record.RenewCount++
	record.DueDate = dueDate
	clone := *record
	return &clone, nil
}

func (f *fakeStore) MarkReturned(ctx context.Context, id string, returnedAt time.Time) error {
	if f.returnErr != nil {
		return f.returnErr
	}
	record, ok := f.records[id]
	if !ok || record.Returned {
		return ErrRecordNotFound
	}
	record.Returned = true
	record.ReturnedAt = &returnedAt
	return nil
}

func (f *fakeStore) Reopen(ctx context.Context, id string) error {
	record, ok := f.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	record.Returned = false
	record.ReturnedAt = nil
	return nil
}

func (f *fakeStore) activeCount(bookID string) int {
	count := 0
	for _, record := range f.records {
		if !record.Returned && record.BookID == bookID {
			count++
		}
	}
	return count
}

type fakeRequests struct {
	requests map[string]*requests.BorrowRequest
	now      func() time.Time
}

func newFakeRequests(now func() time.Time) *fakeRequests {
	return &fakeRequests{requests: make(map[string]*requests.BorrowRequest), now: now}
}

func (f *fakeRequests) addPending(userID, bookID string, reqType requests.Type) *requests.BorrowRequest {
	request := &requests.BorrowRequest{
		ID:        identity.New().Canonical(),
		UserID:    userID,
		BookID:    bookID,
		Type:      reqType,
		Status:    requests.StatusPending,
		CreatedAt: f.now(),
	}
	f.requests[request.ID] = request
	return request
}

func (f *fakeRequests) Submit(ctx context.Context, p requests.SubmitParams) (*requests.BorrowRequest, error) {
	if !requests.ValidType(p.Type) {
		return nil, requests.ErrInvalidType
	}
	for _, existing := range f.requests {
		if existing.Status == requests.StatusPending && existing.Type == p.Type &&
			identity.Parse(existing.UserID).Equal(p.UserID) && identity.Parse(existing.BookID).Equal(p.BookID) {
			return nil, requests.ErrDuplicatePending
		}
	}
	request := f.addPending(p.UserID.Canonical(), p.BookID.Canonical(), p.Type)
	clone := *request
	return &clone, nil
}

func (f *fakeRequests) Get(ctx context.Context, id string) (*requests.BorrowRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, requests.ErrRequestNotFound
	}
	clone := *request
	return &clone, nil
}

func (f *fakeRequests) ListByUser(ctx context.Context, userID identity.FlexID, limit int) ([]*requests.BorrowRequest, error) {
	return nil, nil
}

func (f *fakeRequests) ListAll(ctx context.Context) ([]*requests.BorrowRequest, error) {
	return nil, nil
}

func (f *fakeRequests) MarkHandled(ctx context.Context, id string, to requests.Status, reason string) (*requests.BorrowRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, requests.ErrRequestNotFound
	}
	if request.Status != requests.StatusPending {
		return nil, requests.ErrAlreadyHandled
	}
	handledAt := f.now()
	request.Status = to
	request.Reason = reason
	request.HandledAt = &handledAt
	clone := *request
	return &clone, nil
}

func (f *fakeRequests) Reopen(ctx context.Context, id string) error {
	request, ok := f.requests[id]
	if !ok {
		return requests.ErrRequestNotFound
	}
	request.Status = requests.StatusPending
	request.Reason = ""
	request.HandledAt = nil
	return nil
}

type fakeHistory struct {
	entries   []history.Entry
	appendErr error
}

func (f *fakeHistory) Append(ctx context.Context, entry history.Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistory) ListByUser(ctx context.Context, userID identity.FlexID) ([]*history.Entry, error) {
	return nil, nil
}

func (f *fakeHistory) ListByBook(ctx context.Context, bookID identity.FlexID) ([]*history.Entry, error) {
	return nil, nil
}

func (f *fakeHistory) ListByUserAndBook(ctx context.Context, userID, bookID identity.FlexID) ([]*history.Entry, error) {
	return nil, nil
}

func (f *fakeHistory) byAction(action history.Action) []history.Entry {
	var matched []history.Entry
	for _, entry := range f.entries {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}
	return matched
}
