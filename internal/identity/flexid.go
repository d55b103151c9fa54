// internal/identity/flexid.go
package identity

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

// FlexID is a reader or book identifier that may arrive as a structured
// reference (a UUID in any of its textual encodings) or as an opaque string.
// Historical rows were persisted in both representations, so every lookup
// must match the disjunction of the canonical and raw forms while every new
// write stores only the canonical form.
type FlexID struct {
	raw       string
	canonical string
	isUUID    bool
}

// Parse normalizes a raw identifier value. Braced, urn-prefixed and
// upper-case UUID encodings all canonicalize to the lower-case RFC 4122
// string; anything else is kept as an opaque identifier.
func Parse(raw string) FlexID {
	trimmed := strings.TrimSpace(raw)
	if u, err := uuid.Parse(trimmed); err == nil {
		return FlexID{raw: trimmed, canonical: u.String(), isUUID: true}
	}
	return FlexID{raw: trimmed, canonical: trimmed}
}

// FromUUID wraps an already-structured reference.
func FromUUID(u uuid.UUID) FlexID {
	s := u.String()
	return FlexID{raw: s, canonical: s, isUUID: true}
}

// New returns a freshly generated structured identifier.
func New() FlexID {
	return FromUUID(uuid.New())
}

// Canonical returns the form used for storage and equality comparison.
func (id FlexID) Canonical() string { return id.canonical }

// IsUUID reports whether the identifier is a structured reference.
func (id FlexID) IsUUID() bool { return id.isUUID }

// IsZero reports whether the identifier is empty after trimming.
func (id FlexID) IsZero() bool { return id.canonical == "" }

// UUID returns the structured form, if there is one.
func (id FlexID) UUID() (uuid.UUID, bool) {
	if !id.isUUID {
		return uuid.Nil, false
	}
	u, err := uuid.Parse(id.canonical)
	if err != nil {
		return uuid.Nil, false
	}
	return u, true
}

// Forms returns every textual representation a persisted row could hold for
// this identifier: the canonical form first, then the raw form if distinct.
func (id FlexID) Forms() []string {
	if id.raw == id.canonical {
		return []string{id.canonical}
	}
	return []string{id.canonical, id.raw}
}

// Match builds the disjunctive predicate `col = canonical OR col = raw` for
// querying a store whose historical rows may have persisted either
// representation. A single exact-match lookup would silently miss rows.
func (id FlexID) Match(column string) goqu.Expression {
	forms := id.Forms()
	if len(forms) == 1 {
		return goqu.C(column).Eq(forms[0])
	}
	exprs := make([]goqu.Expression, 0, len(forms))
	for _, form := range forms {
		exprs = append(exprs, goqu.C(column).Eq(form))
	}
	return goqu.Or(exprs...)
}

// Equal compares two identifiers by canonical form.
func (id FlexID) Equal(other FlexID) bool {
	return id.canonical == other.canonical
}

// String implements fmt.Stringer using the canonical form.
func (id FlexID) String() string { return id.canonical }
