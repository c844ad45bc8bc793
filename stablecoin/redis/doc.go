// Package redis wraps go-redis connection management and a redsync-backed
// distributed lock.
package redis
