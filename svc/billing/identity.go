package billing

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// User is an account record in the identity directory.
type User struct {
	ID             uuid.UUID
	Email          string
	EmailConfirmed bool
	Metadata       map[string]any
}

// NewUser describes an account to be provisioned.
type NewUser struct {
	Email string
	// Password is generated, never stored here, and never communicated to
	// the user; they sign in through the password-reset flow.
	Password string
	Metadata map[string]any
}

// Directory abstracts the identity service's administrative API.
type Directory interface {
	// FindUserByEmail returns the account for the given email, or
	// ErrUserNotFound. A failed directory listing is ErrDirectoryUnavailable.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateUser provisions a new account with the email pre-confirmed.
	// Returns ErrEmailTaken when an account for the email already exists,
	// so a concurrent provisioning race collapses into the existing-user path.
	CreateUser(ctx context.Context, user NewUser) (*User, error)
}

// ThrowawayPassword generates a random password for provisioned accounts.
// The payment receipt already proves control of the email, so the user is
// expected to set a real password through the reset flow.
func ThrowawayPassword() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken,
		// which is not a condition worth limping through.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
