// internal/membership/domain.go
package membership

import (
	"errors"
	"time"
)

const (
	RoleReader        = "reader"
	RoleAdministrator = "administrator"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many attempts, try again later")
)

// Member is an authenticated library reader or administrator.
type Member struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// credential is a member's stored login secret. Never serialized.
type credential struct {
	MemberID     string `db:"member_id"`
	PasswordHash string `db:"password_hash"`
	Salt         string `db:"salt"`
}
