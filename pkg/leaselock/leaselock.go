// Package leaselock keeps two workers from crawling the same graph at once.
// Locks are rows in crawl_locks with an expiry that the holder renews while
// the crawl runs.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("crawl already running for graph")
	ErrLost = errors.New("crawl lock lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	defaultTTL   = 2 * time.Minute
	renewRetries = 3
)

// Locker hands out crawl locks keyed by graph id.
type Locker struct {
	db         dbConn
	ttl        time.Duration
	renewEvery time.Duration
	wait       bool
	waitEvery  time.Duration
	owner      string
}

type NewLockerParams struct {
	DB  dbConn
	TTL time.Duration
	// Wait makes Acquire poll until the lock frees up instead of failing
	// with ErrBusy.
	Wait bool
	// Owner prefixes lock tokens so a held lock can be traced to a worker.
	Owner string
}

func NewLocker(params NewLockerParams) *Locker {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Locker{
		db:         params.DB,
		ttl:        ttl,
		renewEvery: max(ttl/2, time.Second),
		wait:       params.Wait,
		waitEvery:  time.Second,
		owner:      params.Owner,
	}
}

// Lock is a held crawl lock. Context is cancelled when the lock is released
// or can no longer be renewed.
type Lock struct {
	GraphID string
	Token   string
	Context context.Context

	locker   *Locker
	cancel   context.CancelCauseFunc
	stopOnce sync.Once
	stopCh   chan struct{}
}

// WithCrawlLock runs fn while holding the lock for graphID.
func (l *Locker) WithCrawlLock(ctx context.Context, graphID string, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, graphID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("[Lock] Failed to release crawl lock", "graph", graphID, "err", err)
		}
	}()
	return fn(lock.Context)
}

func (l *Locker) Acquire(ctx context.Context, graphID string) (*Lock, error) {
	if graphID == "" {
		return nil, errors.New("crawl lock needs a graph id")
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create lock token: %w", err)
	}
	token := l.owner + id
	key := lockKey(graphID)

	for {
		var returned string
		err := l.db.QueryRow(ctx, tryAcquireSQL, key, token, l.ttl.Milliseconds()).Scan(&returned)
		if err == nil && returned != "" {
			break
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to acquire crawl lock for %s: %w", graphID, err)
		}
		if !l.wait {
			return nil, fmt.Errorf("%w: %s", ErrBusy, graphID)
		}
		logger.Debug("[Lock] Waiting for crawl lock", "graph", graphID)
		if err := sleepWithJitter(ctx, l.waitEvery, l.waitEvery/4); err != nil {
			return nil, err
		}
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	lock := &Lock{
		GraphID: graphID,
		Token:   token,
		Context: lockCtx,
		locker:  l,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	go lock.renewLoop()
	logger.Debug("[Lock] Crawl lock acquired", "graph", graphID)
	return lock, nil
}

func (lk *Lock) Release(ctx context.Context) error {
	lk.stopOnce.Do(func() {
		close(lk.stopCh)
		lk.cancel(context.Canceled)
	})
	_, err := lk.locker.db.Exec(ctx, releaseSQL, lockKey(lk.GraphID), lk.Token)
	return err
}

func (lk *Lock) renewLoop() {
	t := time.NewTicker(lk.locker.renewEvery)
	defer t.Stop()
	for {
		select {
		case <-lk.stopCh:
			return
		case <-lk.Context.Done():
			return
		case <-t.C:
			if err := lk.renew(); err != nil {
				logger.Error("[Lock] Crawl lock lost", "graph", lk.GraphID, "err", err)
				lk.cancel(err)
				return
			}
		}
	}
}

func (lk *Lock) renew() error {
	var err error
	for attempt := range renewRetries {
		ctx, cancel := context.WithTimeout(lk.Context, 15*time.Second)
		var returned string
		err = lk.locker.db.QueryRow(ctx, renewSQL, lockKey(lk.GraphID), lk.Token, lk.locker.ttl.Milliseconds()).Scan(&returned)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt < renewRetries-1 {
			if serr := sleepWithJitter(lk.Context, 200*time.Millisecond, 0); serr != nil {
				return serr
			}
		}
	}
	return err
}

func lockKey(graphID string) string {
	return "crawl:" + graphID
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO crawl_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE crawl_locks.expires_at < now()
RETURNING lock_key;
`

const renewSQL = `
UPDATE crawl_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM crawl_locks
WHERE lock_key = $1 AND locked_by = $2;
`
