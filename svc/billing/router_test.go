package billing_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reconcilebook/billingd/svc/billing"
)

func newTestRouter(t *testing.T, provider *mockProvider, dir *mockDirectory, profiles *mockProfileStore, pending *mockPendingStore) http.Handler {
	t.Helper()
	svc := newTestService(provider, dir, profiles, pending)
	return billing.Router(svc, nil)
}

func postWebhook(t *testing.T, h http.Handler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleStripe_MissingSignature(t *testing.T) {
	provider := new(mockProvider)
	h := newTestRouter(t, provider, new(mockDirectory), new(mockProfileStore), new(mockPendingStore))

	rec := postWebhook(t, h, "{}", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "No signature", body["error"])
	assert.NotContains(t, body, "details")

	// Verification must not even be attempted.
	provider.AssertNotCalled(t, "VerifyWebhook", mock.Anything, mock.Anything)
}

func TestHandleStripe_InvalidSignature(t *testing.T) {
	provider := new(mockProvider)
	provider.On("VerifyWebhook", mock.Anything, "bad").
		Return(nil, billing.ErrInvalidSignature)
	h := newTestRouter(t, provider, new(mockDirectory), new(mockProfileStore), new(mockPendingStore))

	rec := postWebhook(t, h, "{}", "bad")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", decodeBody(t, rec)["error"])
}

func TestHandleStripe_MissingEmail(t *testing.T) {
	provider := new(mockProvider)
	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(checkoutEvent("", 7900), nil)
	h := newTestRouter(t, provider, new(mockDirectory), new(mockProfileStore), new(mockPendingStore))

	rec := postWebhook(t, h, "{}", "sig")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No customer email", decodeBody(t, rec)["error"])
}

func TestHandleStripe_SuccessShape(t *testing.T) {
	provider := new(mockProvider)
	dir := new(mockDirectory)
	profiles := new(mockProfileStore)

	userID := uuid.New()
	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(checkoutEvent("amy@example.com", 7900), nil)
	dir.On("FindUserByEmail", mock.Anything, "amy@example.com").
		Return(&billing.User{ID: userID, Email: "amy@example.com"}, nil)
	profiles.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	h := newTestRouter(t, provider, dir, profiles, new(mockPendingStore))
	rec := postWebhook(t, h, "{}", "sig")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "amy@example.com", body["email"])
	assert.Equal(t, "professional", body["plan"])
	assert.InDelta(t, 79.00, body["amount"].(float64), 0.001)
	assert.Equal(t, userID.String(), body["user_id"])
	assert.NotEmpty(t, body["message"])
}

func TestHandleStripe_FallbackOmitsUserID(t *testing.T) {
	provider := new(mockProvider)
	dir := new(mockDirectory)
	pending := new(mockPendingStore)

	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(checkoutEvent("new@example.com", 7900), nil)
	dir.On("FindUserByEmail", mock.Anything, "new@example.com").
		Return(nil, billing.ErrUserNotFound)
	dir.On("CreateUser", mock.Anything, mock.Anything).
		Return(nil, errors.New("directory down"))
	pending.On("Insert", mock.Anything, mock.Anything).Return(nil)

	h := newTestRouter(t, provider, dir, new(mockProfileStore), pending)
	rec := postWebhook(t, h, "{}", "sig")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "user_id")
}

func TestHandleStripe_ReceivedShape(t *testing.T) {
	provider := new(mockProvider)
	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(&billing.Event{ID: "evt_1", Type: "invoice.paid"}, nil)

	h := newTestRouter(t, provider, new(mockDirectory), new(mockProfileStore), new(mockPendingStore))
	rec := postWebhook(t, h, "{}", "sig")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, map[string]any{"received": true}, body)
}

func TestHandleStripe_DownstreamErrorCarriesDetails(t *testing.T) {
	provider := new(mockProvider)
	dir := new(mockDirectory)

	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(checkoutEvent("amy@example.com", 7900), nil)
	dir.On("FindUserByEmail", mock.Anything, "amy@example.com").
		Return(nil, errors.Join(billing.ErrDirectoryUnavailable, errors.New("connection refused")))

	h := newTestRouter(t, provider, dir, new(mockProfileStore), new(mockPendingStore))
	rec := postWebhook(t, h, "{}", "sig")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Database error", body["error"])
	assert.Contains(t, body["details"], "connection refused")
}

func TestHandleStripe_UnexpectedErrorIsGeneric500(t *testing.T) {
	provider := new(mockProvider)
	provider.On("VerifyWebhook", mock.Anything, "sig").
		Return(nil, errors.New("boom"))

	h := newTestRouter(t, provider, new(mockDirectory), new(mockProfileStore), new(mockPendingStore))
	rec := postWebhook(t, h, "{}", "sig")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Webhook processing failed", body["error"])
	assert.Equal(t, "boom", body["details"])
}
