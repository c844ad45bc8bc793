package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
)

var (
	// ErrEmptyLockKey is returned for a blank lock key.
	ErrEmptyLockKey = errors.New("lock key must not be empty")
	// ErrNilLockFn is returned when WithLock gets no function.
	ErrNilLockFn = errors.New("lock function must not be nil")
	// ErrLockNotHeld is returned when unlocking a lock that expired or was taken over.
	ErrLockNotHeld = errors.New("lock was not held or already expired")
)

// LockHandle is an acquired lock.
type LockHandle interface {
	Unlock(ctx context.Context) error
}

// LockManager provides distributed locks. The multi-signature auto-submitter
// takes one per pending transaction so that replicas never submit twice.
type LockManager interface {
	WithLock(ctx context.Context, lockKey string, fn func(context.Context) error) error
	TryLock(ctx context.Context, lockKey string) (LockHandle, bool, error)
}

// LockOptions configures lock behavior.
type LockOptions struct {
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultLockOptions returns the defaults used by WithLock.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:      10 * time.Second,
		Tries:       3,
		RetryDelay:  500 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

var _ LockManager = (*RedisLockManager)(nil)

// RedisLockManager implements LockManager with redsync.
type RedisLockManager struct {
	redsync *redsync.Redsync
	opts    LockOptions
}

type clientPool struct {
	conn *Client
}

func (p *clientPool) Get(ctx context.Context) (redsyncredis.Conn, error) {
	rdb, err := p.conn.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for lock pool: %w", err)
	}

	return goredis.NewPool(rdb).Get(ctx)
}

// NewRedisLockManager returns a lock manager over conn.
func NewRedisLockManager(conn *Client, opts ...LockOptions) (*RedisLockManager, error) {
	if conn == nil {
		return nil, ErrNilClient
	}

	o := DefaultLockOptions()
	if len(opts) > 0 {
		o = opts[0]
	}

	return &RedisLockManager{redsync: redsync.New(&clientPool{conn: conn}), opts: o}, nil
}

func (dl *RedisLockManager) mutex(lockKey string, tries int) *redsync.Mutex {
	return dl.redsync.NewMutex(lockKey,
		redsync.WithExpiry(dl.opts.Expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(dl.opts.RetryDelay),
		redsync.WithDriftFactor(dl.opts.DriftFactor),
	)
}

// WithLock runs fn while holding lockKey. The lock is released when fn
// returns.
func (dl *RedisLockManager) WithLock(ctx context.Context, lockKey string, fn func(context.Context) error) error {
	if fn == nil {
		return ErrNilLockFn
	}

	if strings.TrimSpace(lockKey) == "" {
		return ErrEmptyLockKey
	}

	logger, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "redis.lock.with_lock")
	defer span.End()

	mutex := dl.mutex(lockKey, dl.opts.Tries)

	if err := mutex.LockContext(ctx); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to acquire lock", err)

		return fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}

	defer func() {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			logger.Log(ctx, log.LevelWarn, "failed to release lock", log.String("lock_key", lockKey), log.Err(err))
		}
	}()

	return fn(ctx)
}

// TryLock makes a single attempt on lockKey. Contention is reported as
// acquired == false with a nil error.
//
//nolint:ireturn
func (dl *RedisLockManager) TryLock(ctx context.Context, lockKey string) (LockHandle, bool, error) {
	if strings.TrimSpace(lockKey) == "" {
		return nil, false, ErrEmptyLockKey
	}

	logger, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "redis.lock.try_lock")
	defer span.End()

	mutex := dl.mutex(lockKey, 1)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			logger.Log(ctx, log.LevelDebug, "lock held elsewhere", log.String("lock_key", lockKey))

			return nil, false, nil
		}

		opentelemetry.HandleSpanError(&span, "failed to attempt lock acquisition", err)

		return nil, false, fmt.Errorf("failed to attempt lock acquisition for %s: %w", lockKey, err)
	}

	return &lockHandle{mutex: mutex, logger: logger}, true, nil
}

type lockHandle struct {
	mutex  *redsync.Mutex
	logger log.Logger
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("distributed lock: unlock: %w", err)
	}

	if !ok {
		return ErrLockNotHeld
	}

	return nil
}
