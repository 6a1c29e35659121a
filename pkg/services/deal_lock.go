package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

// DefaultLockTTL bounds how long a crashed holder can keep a deal locked.
const DefaultLockTTL = 2 * time.Minute

// DealLocker grants at most one in-flight mutation per deal. A lock that is
// already held is a conflict: the second caller is rejected, never queued.
type DealLocker interface {
	// Acquire claims the deal. It returns apperrors.ErrConflict when another
	// mutation holds it. The lease renews itself until released.
	Acquire(ctx context.Context, dealID uuid.UUID) (*DealLease, error)
}

// leaseBackend is what a locker implementation supplies to a DealLease.
type leaseBackend interface {
	// extend pushes the expiry out by a full TTL. It reports false when the
	// lease expired or was taken by another holder.
	extend(ctx context.Context) (bool, error)
	release()
}

// DealLease is a held per-deal lock. Its context is cancelled when the lease
// is released or lost, so work done under it stops once another mutation
// could have taken the deal.
type DealLease struct {
	dealID  uuid.UUID
	backend leaseBackend
	ctx     context.Context
	cancel  context.CancelCauseFunc
	done    chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

func newDealLease(parent context.Context, dealID uuid.UUID, ttl time.Duration, backend leaseBackend, logger *zap.Logger) *DealLease {
	ctx, cancel := context.WithCancelCause(parent)
	l := &DealLease{
		dealID:  dealID,
		backend: backend,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go l.keepAlive(ttl / 3)
	return l
}

// Context is cancelled when the lease is released or lost.
func (l *DealLease) Context() context.Context {
	return l.ctx
}

// Lost returns the conflict error when the lease was lost, nil otherwise.
func (l *DealLease) Lost() error {
	if cause := context.Cause(l.ctx); errors.Is(cause, apperrors.ErrConflict) {
		return cause
	}
	return nil
}

// Confirm extends the lease before a commit. It returns apperrors.ErrConflict
// when the lease is no longer held.
func (l *DealLease) Confirm(ctx context.Context) error {
	if err := l.Lost(); err != nil {
		return err
	}
	ok, err := l.backend.extend(ctx)
	if err != nil {
		return fmt.Errorf("failed to extend deal lock: %w", err)
	}
	if !ok {
		l.lose()
		return fmt.Errorf("%w: lock on deal %s expired before the mutation finished", apperrors.ErrConflict, l.dealID)
	}
	return nil
}

// Release frees the lease. It is idempotent and never frees a lease that
// another holder has since acquired.
func (l *DealLease) Release() {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
		l.backend.release()
	})
}

func (l *DealLease) lose() {
	l.cancel(fmt.Errorf("%w: lock on deal %s expired before the mutation finished", apperrors.ErrConflict, l.dealID))
}

func (l *DealLease) keepAlive(interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.backend.extend(l.ctx)
			if err != nil {
				// Transient store errors are retried on the next tick; a
				// commit still has to pass Confirm.
				l.logger.Warn("Failed to extend deal lock",
					zap.String("deal_id", l.dealID.String()),
					zap.Error(err))
				continue
			}
			if !ok {
				l.logger.Warn("Deal lock lost", zap.String("deal_id", l.dealID.String()))
				l.lose()
				return
			}
		}
	}
}

type memoryLocker struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	held   map[uuid.UUID]memoryLease
	token  uint64
	logger *zap.Logger
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker creates an in-process lock table for single-instance deployments.
func NewMemoryLocker(ttl time.Duration) DealLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &memoryLocker{
		ttl:    ttl,
		now:    time.Now,
		held:   make(map[uuid.UUID]memoryLease),
		logger: zap.NewNop(),
	}
}

var _ DealLocker = (*memoryLocker)(nil)

func (l *memoryLocker) Acquire(ctx context.Context, dealID uuid.UUID) (*DealLease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.held[dealID]; ok && now.Before(lease.expires) {
		return nil, fmt.Errorf("%w: deal %s has a mutation in progress", apperrors.ErrConflict, dealID)
	}

	l.token++
	l.held[dealID] = memoryLease{token: l.token, expires: now.Add(l.ttl)}

	return newDealLease(ctx, dealID, l.ttl, &memoryLeaseHandle{locker: l, dealID: dealID, token: l.token}, l.logger), nil
}

type memoryLeaseHandle struct {
	locker *memoryLocker
	dealID uuid.UUID
	token  uint64
}

func (h *memoryLeaseHandle) extend(context.Context) (bool, error) {
	l := h.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	lease, ok := l.held[h.dealID]
	if !ok || lease.token != h.token || !now.Before(lease.expires) {
		return false, nil
	}
	lease.expires = now.Add(l.ttl)
	l.held[h.dealID] = lease
	return true, nil
}

func (h *memoryLeaseHandle) release() {
	l := h.locker
	l.mu.Lock()
	defer l.mu.Unlock()
	// An expired lease may have been re-granted; only the owner releases.
	if lease, ok := l.held[h.dealID]; ok && lease.token == h.token {
		delete(l.held, h.dealID)
	}
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the key's TTL only when it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a lock table shared by every instance using the same Redis.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) DealLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &redisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.Named("deal-lock"),
	}
}

var _ DealLocker = (*redisLocker)(nil)

func (l *redisLocker) key(dealID uuid.UUID) string {
	return l.prefix + "deal-lock:" + dealID.String()
}

func (l *redisLocker) Acquire(ctx context.Context, dealID uuid.UUID) (*DealLease, error) {
	key := l.key(dealID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire deal lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: deal %s has a mutation in progress", apperrors.ErrConflict, dealID)
	}

	return newDealLease(ctx, dealID, l.ttl, &redisLeaseHandle{locker: l, dealID: dealID, key: key, token: token}, l.logger), nil
}

type redisLeaseHandle struct {
	locker *redisLocker
	dealID uuid.UUID
	key    string
	token  string
}

func (h *redisLeaseHandle) extend(ctx context.Context) (bool, error) {
	n, err := extendScript.Run(ctx, h.locker.client, []string{h.key}, h.token, h.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (h *redisLeaseHandle) release() {
	// Release even if the request context was cancelled.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(releaseCtx, h.locker.client, []string{h.key}, h.token).Err(); err != nil {
		h.locker.logger.Warn("Failed to release deal lock; it will expire",
			zap.String("deal_id", h.dealID.String()),
			zap.Duration("ttl", h.locker.ttl),
			zap.Error(err))
	}
}
