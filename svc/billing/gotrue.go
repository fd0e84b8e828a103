package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityConfig holds the admin credentials for the identity service.
// The service role key bypasses row-level security and must never reach a
// client; it exists only inside this backend.
type IdentityConfig struct {
	ProjectURL     string `env:"IDENTITY_PROJECT_URL,required"`
	ServiceRoleKey string `env:"IDENTITY_SERVICE_ROLE_KEY,required"`
}

// AdminDirectory implements Directory against a GoTrue-style admin API
// (Supabase auth and compatible services).
type AdminDirectory struct {
	baseURL string
	key     string
	http    *http.Client
}

// NewAdminDirectory creates an identity admin client. Credentials are
// validated here so a missing secret fails at startup.
func NewAdminDirectory(cfg IdentityConfig, opts ...AdminDirectoryOption) (*AdminDirectory, error) {
	if cfg.ProjectURL == "" {
		return nil, ErrMissingProjectURL
	}
	if cfg.ServiceRoleKey == "" {
		return nil, ErrMissingServiceKey
	}

	d := &AdminDirectory{
		baseURL: strings.TrimRight(cfg.ProjectURL, "/") + "/auth/v1",
		key:     cfg.ServiceRoleKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// AdminDirectoryOption configures the admin client.
type AdminDirectoryOption func(*AdminDirectory)

// WithHTTPClient substitutes the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) AdminDirectoryOption {
	return func(d *AdminDirectory) {
		if c != nil {
			d.http = c
		}
	}
}

// adminUser is the wire shape of a directory account.
type adminUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt string         `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

func (u adminUser) toUser() (*User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", u.ID, err)
	}
	return &User{
		ID:             id,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != "",
		Metadata:       u.UserMetadata,
	}, nil
}

// FindUserByEmail lists the user directory and matches the email in memory.
// The admin API offers no keyed lookup, so this is a full scan; acceptable
// at current directory sizes, and matching is case-sensitive to mirror how
// emails are stored.
func (d *AdminDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/admin/users", nil)
	if err != nil {
		return nil, errors.Join(ErrDirectoryUnavailable, err)
	}
	d.authorize(req)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrDirectoryUnavailable, apiError(resp))
	}

	var listing struct {
		Users []adminUser `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, errors.Join(ErrDirectoryUnavailable, err)
	}

	for _, u := range listing.Users {
		if u.Email == email {
			return u.toUser()
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser provisions an account with the email pre-confirmed. A conflict
// response means another delivery won the race; the caller re-resolves
// through FindUserByEmail.
func (d *AdminDirectory) CreateUser(ctx context.Context, user NewUser) (*User, error) {
	body, err := json.Marshal(map[string]any{
		"email":         user.Email,
		"password":      user.Password,
		"email_confirm": true,
		"user_metadata": user.Metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	d.authorize(req)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var created adminUser
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, err
		}
		return created.toUser()
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, ErrEmailTaken
	default:
		return nil, apiError(resp)
	}
}

func (d *AdminDirectory) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+d.key)
	req.Header.Set("apikey", d.key)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("identity admin API: %d: %s", resp.StatusCode, msg)
}
