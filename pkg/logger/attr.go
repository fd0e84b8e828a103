package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records an account identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// EventID records a webhook event identifier under the key "event_id".
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// Email records a customer email under the key "email".
func Email(email string) slog.Attr {
	return slog.String("email", email)
}

// Plan records a subscription plan tier under the key "plan".
func Plan(plan any) slog.Attr {
	return slog.Any("plan", plan)
}

// CustomerID records a billing provider customer reference under the key "customer_id".
func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}
