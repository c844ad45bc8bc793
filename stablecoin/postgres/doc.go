// Package postgres manages a primary/replica PostgreSQL connection pair
// behind a dbresolver and applies embedded migrations on connect.
package postgres
