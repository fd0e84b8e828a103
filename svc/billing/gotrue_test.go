package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconcilebook/billingd/svc/billing"
)

func newDirectory(t *testing.T, handler http.HandlerFunc) *billing.AdminDirectory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir, err := billing.NewAdminDirectory(billing.IdentityConfig{
		ProjectURL:     srv.URL,
		ServiceRoleKey: "service-role-key",
	}, billing.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return dir
}

func TestNewAdminDirectory_Validation(t *testing.T) {
	t.Run("missing project URL", func(t *testing.T) {
		_, err := billing.NewAdminDirectory(billing.IdentityConfig{ServiceRoleKey: "k"})
		assert.ErrorIs(t, err, billing.ErrMissingProjectURL)
	})

	t.Run("missing service key", func(t *testing.T) {
		_, err := billing.NewAdminDirectory(billing.IdentityConfig{ProjectURL: "https://id.example.com"})
		assert.ErrorIs(t, err, billing.ErrMissingServiceKey)
	})
}

func TestFindUserByEmail(t *testing.T) {
	knownID := uuid.New()

	t.Run("matches listed user", func(t *testing.T) {
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
			assert.Equal(t, "Bearer service-role-key", r.Header.Get("Authorization"))
			assert.Equal(t, "service-role-key", r.Header.Get("apikey"))

			fmt.Fprintf(w, `{"users":[
				{"id":%q,"email":"amy@example.com","email_confirmed_at":"2025-01-01T00:00:00Z"},
				{"id":%q,"email":"other@example.com"}
			]}`, knownID, uuid.New())
		})

		user, err := dir.FindUserByEmail(context.Background(), "amy@example.com")
		require.NoError(t, err)
		assert.Equal(t, knownID, user.ID)
		assert.True(t, user.EmailConfirmed)
	})

	t.Run("case-sensitive match", func(t *testing.T) {
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"users":[{"id":%q,"email":"Amy@example.com"}]}`, knownID)
		})

		_, err := dir.FindUserByEmail(context.Background(), "amy@example.com")
		assert.ErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"users":[]}`)
		})

		_, err := dir.FindUserByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("api failure", func(t *testing.T) {
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service role key expired", http.StatusUnauthorized)
		})

		_, err := dir.FindUserByEmail(context.Background(), "amy@example.com")
		assert.ErrorIs(t, err, billing.ErrDirectoryUnavailable)
		assert.NotErrorIs(t, err, billing.ErrUserNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("provisions confirmed account", func(t *testing.T) {
		created := uuid.New()
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "new@example.com", payload["email"])
			assert.Equal(t, true, payload["email_confirm"])
			assert.NotEmpty(t, payload["password"])

			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":%q,"email":"new@example.com","email_confirmed_at":"2025-06-15T12:00:00Z"}`, created)
		})

		user, err := dir.CreateUser(context.Background(), billing.NewUser{
			Email:    "new@example.com",
			Password: billing.ThrowawayPassword(),
			Metadata: map[string]any{"created_via": "stripe_webhook"},
		})
		require.NoError(t, err)
		assert.Equal(t, created, user.ID)
		assert.True(t, user.EmailConfirmed)
	})

	t.Run("conflict maps to ErrEmailTaken", func(t *testing.T) {
		for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
			dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"msg":"email already registered"}`, status)
			})

			_, err := dir.CreateUser(context.Background(), billing.NewUser{Email: "dup@example.com"})
			assert.ErrorIs(t, err, billing.ErrEmailTaken)
		}
	})

	t.Run("unexpected status surfaces API error", func(t *testing.T) {
		dir := newDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})

		_, err := dir.CreateUser(context.Background(), billing.NewUser{Email: "any@example.com"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, billing.ErrEmailTaken)
		assert.Contains(t, err.Error(), "429")
	})
}

func TestThrowawayPassword(t *testing.T) {
	a := billing.ThrowawayPassword()
	b := billing.ThrowawayPassword()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 24)
}
