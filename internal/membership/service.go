// internal/membership/service.go
package membership

import (
	"context"

	"libracirc/internal/identity"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*Member, error)
	Authenticate(ctx context.Context, email, password string) (*Member, error)
	GetMember(ctx context.Context, id identity.FlexID) (*Member, error)
	CreateAdministrator(ctx context.Context, email, name, password string) (*Member, error)
}
