// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/time/rate"

	"libracirc/internal/identity"
)

var dialect = goqu.Dialect("postgres")

// service implements the Service interface.
type service struct {
	db          *sqlx.DB
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sqlx.DB) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 5), // 5 auth attempts per minute
	}
}

// Register creates a new reader account.
func (s *service) Register(ctx context.Context, email, name, password string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	return s.createMember(ctx, email, name, password, RoleReader)
}

// CreateAdministrator creates an account with the administrator role. Only
// reachable from the operator CLI, never from the HTTP surface.
func (s *service) CreateAdministrator(ctx context.Context, email, name, password string) (*Member, error) {
	return s.createMember(ctx, email, name, password, RoleAdministrator)
}

func (s *service) createMember(ctx context.Context, email, name, password, role string) (*Member, error) {
	if email == "" || name == "" {
		return nil, fmt.Errorf("email and name are required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := &Member{
		ID:     identity.New().Canonical(),
		Email:  email,
		Name:   name,
		Role:   role,
		Status: "active",
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO members (id, email, name, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, member.ID, member.Email, member.Name, member.Role, member.Status).Scan(&member.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (member_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`, member.ID, passwordHash, salt)
	if err != nil {
		return nil, fmt.Errorf("insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return member, nil
}

// Authenticate verifies a member's credentials and returns the member.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	member := &Member{}
	err := s.db.GetContext(ctx, member, `
		SELECT id, email, name, role, status, created_at
		FROM members
		WHERE email = $1
	`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup member: %w", err)
	}

	cred := &credential{}
	err = s.db.GetContext(ctx, cred, `
		SELECT member_id, password_hash, salt
		FROM credentials
		WHERE member_id = $1
	`, member.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return member, nil
}

// GetMember retrieves a member by flexible identifier.
func (s *service) GetMember(ctx context.Context, id identity.FlexID) (*Member, error) {
	query, args, err := dialect.
		From("members").
		Select("id", "email", "name", "role", "status", "created_at").
		Where(id.Match("id")).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build member query: %w", err)
	}

	member := &Member{}
	if err := s.db.GetContext(ctx, member, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return member, nil
}
