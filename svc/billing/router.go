package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reconcilebook/billingd/pkg/logger"
)

// webhookBodyLimit caps inbound payloads; Stripe events are far smaller.
const webhookBodyLimit = 1 << 20

// Router mounts the billing webhook endpoints.
//
//	POST /stripe for signed payment processor events
func Router(svc *Service, log *slog.Logger) chi.Router {
	if svc == nil {
		panic("billing: Service is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	h := &webhookHandler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Post("/stripe", h.handleStripe)
	return r
}

type webhookHandler struct {
	svc *Service
	log *slog.Logger
}

func (h *webhookHandler) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Reject unsigned deliveries before touching the body; nothing
	// downstream is attempted for an unauthenticated request.
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "No signature", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", "")
		return
	}

	result, err := h.svc.HandleEvent(ctx, payload, signature)
	if err != nil {
		h.writeHandlerError(ctx, w, err)
		return
	}

	if result.Received {
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	body := map[string]any{
		"success": true,
		"email":   result.Email,
		"plan":    result.Plan,
		"amount":  result.Amount,
		"message": result.Message,
	}
	if result.UserID != "" {
		body["user_id"] = result.UserID
	}
	writeJSON(w, http.StatusOK, body)
}

// writeHandlerError maps the error taxonomy onto response shapes: caller
// errors get 400 and are never retried by the sender, configuration and
// downstream failures get 500 with the underlying message in details. The
// caller is the payment processor, not an end user, so passing the
// downstream error text through is acceptable exposure.
func (h *webhookHandler) writeHandlerError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingSignature):
		writeError(w, http.StatusBadRequest, "No signature", "")
	case errors.Is(err, ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "Invalid signature", "")
	case errors.Is(err, ErrMissingEmail):
		writeError(w, http.StatusBadRequest, "No customer email", "")
	case errors.Is(err, ErrMissingWebhookSecret),
		errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, ErrMissingServiceKey),
		errors.Is(err, ErrMissingProjectURL):
		h.log.ErrorContext(ctx, "webhook rejected: misconfiguration", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Server configuration error", err.Error())
	case errors.Is(err, ErrDirectoryUnavailable), errors.Is(err, ErrProfileWriteFailed):
		h.log.ErrorContext(ctx, "webhook failed: downstream error", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error", err.Error())
	default:
		h.log.ErrorContext(ctx, "webhook failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Webhook processing failed", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]any{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
