// Package email provides transactional email sending behind a small
// interface, with a Postmark implementation for production and a log-only
// sender for development.
package email
