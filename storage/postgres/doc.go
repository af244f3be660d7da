// Package postgres holds the durable stores: users, consent policies, user
// consents and refresh token records, backed by PostgreSQL through the pgx
// database/sql driver. Schema changes are embedded goose migrations.
package postgres
