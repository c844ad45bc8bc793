package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher confirm errors.
var (
	ErrChannelRequired        = errors.New("rabbitmq channel is required")
	ErrConfirmModeUnavailable = errors.New("channel does not support confirm mode")
	ErrPublishNacked          = errors.New("message was nacked by broker")
	ErrConfirmTimeout         = errors.New("confirmation timed out")
	ErrPublisherClosed        = errors.New("publisher is closed")
)

// DefaultConfirmTimeout bounds the wait for a broker confirmation.
const DefaultConfirmTimeout = 5 * time.Second

const confirmChannelBuffer = 256

// ConfirmableChannel is the part of *amqp.Channel the publisher uses.
type ConfirmableChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ConfirmablePublisher publishes on a channel in confirm mode and waits for
// the broker's ack of every message. Publishes are serialized so the next
// confirmation always belongs to the last message.
type ConfirmablePublisher struct {
	ch             ConfirmableChannel
	confirms       chan amqp.Confirmation
	closedCh       chan struct{}
	closeOnce      sync.Once
	logger         log.Logger
	confirmTimeout time.Duration

	publishMu sync.Mutex
	mu        sync.RWMutex
	closed    bool
}

// PublisherOption configures a ConfirmablePublisher.
type PublisherOption func(*ConfirmablePublisher)

// WithLogger sets the publisher logger.
func WithLogger(logger log.Logger) PublisherOption {
	return func(p *ConfirmablePublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConfirmTimeout overrides DefaultConfirmTimeout. Non-positive values
// are ignored.
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *ConfirmablePublisher) {
		if timeout > 0 {
			p.confirmTimeout = timeout
		}
	}
}

// NewConfirmablePublisher puts ch in confirm mode.
func NewConfirmablePublisher(ch ConfirmableChannel, opts ...PublisherOption) (*ConfirmablePublisher, error) {
	if ch == nil {
		return nil, ErrChannelRequired
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfirmModeUnavailable, err)
	}

	p := &ConfirmablePublisher{
		ch:             ch,
		confirms:       ch.NotifyPublish(make(chan amqp.Confirmation, confirmChannelBuffer)),
		closedCh:       make(chan struct{}),
		logger:         log.NewNop(),
		confirmTimeout: DefaultConfirmTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	closeNotify := ch.NotifyClose(make(chan *amqp.Error, 1))

	go p.monitor(closeNotify)

	return p, nil
}

func (p *ConfirmablePublisher) monitor(closeNotify <-chan *amqp.Error) {
	select {
	case amqpErr, ok := <-closeNotify:
		if ok && amqpErr != nil {
			p.logger.Log(context.Background(), log.LevelWarn, "rabbitmq channel closed",
				log.Int("code", amqpErr.Code), log.String("reason", amqpErr.Reason))
		}

		p.markClosed()
	case <-p.closedCh:
	}
}

func (p *ConfirmablePublisher) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.closeOnce.Do(func() { close(p.closedCh) })
}

// Publish sends msg and waits for its confirmation.
func (p *ConfirmablePublisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return ErrPublisherClosed
	}

	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	err := waitForConfirm(ctx, p.confirms, p.closedCh, p.confirmTimeout)
	if errors.Is(err, ErrConfirmTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// A late confirmation would be read as the next message's.
		p.markClosed()
		_ = p.ch.Close()
	}

	return err
}

func waitForConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, closedCh <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case confirmed, ok := <-confirms:
		if !ok {
			return ErrPublisherClosed
		}

		if !confirmed.Ack {
			return fmt.Errorf("%w: delivery_tag=%d", ErrPublishNacked, confirmed.DeliveryTag)
		}

		return nil
	case <-closedCh:
		return ErrPublisherClosed
	case <-timer.C:
		return ErrConfirmTimeout
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	}
}

// Close closes the channel. Later publishes fail with ErrPublisherClosed.
func (p *ConfirmablePublisher) Close() error {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil
	}

	p.markClosed()

	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("closing publisher channel: %w", err)
	}

	return nil
}
