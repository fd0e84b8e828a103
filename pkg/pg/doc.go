// Package pg wires pgx connection pooling, goose migrations, and readiness
// probes for the service's PostgreSQL dependency.
package pg
