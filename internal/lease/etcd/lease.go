package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	DefaultLockKey = "/rds-tg-sync/lock"

	dialTimeout    = 5 * time.Second
	grantTimeout   = 5 * time.Second
	releaseTimeout = 5 * time.Second
	minTTLSeconds  = 5
)

// Lease keeps overlapping invocations from reconciling the same target group
// at once. The lock lives as long as the etcd session of the invocation, so a
// crashed run frees it after the ttl.
type Lease struct {
	etcd       *clientv3.Client
	key        string
	ttlSeconds int

	log zerolog.Logger
}

func NewLease(endpoints []string, key string, ttl time.Duration, logger zerolog.Logger) (*Lease, error) {
	clnt, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	if key == "" {
		key = DefaultLockKey
	}
	return &Lease{
		etcd:       clnt,
		key:        key,
		ttlSeconds: max(int(ttl.Seconds()), minTTLSeconds),
		log:        logger.With().Str("component", "lease").Logger(),
	}, nil
}

// Acquire takes the lock without waiting. acquired is false when another
// invocation holds it; release must be called once the run is over. Every etcd
// call made here is bound to ctx.
func (l *Lease) Acquire(ctx context.Context) (release func(), acquired bool, err error) {
	session, err := l.newSession(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	mu := concurrency.NewMutex(session, l.key)
	err = mu.TryLock(ctx)
	if errors.Is(err, concurrency.ErrLocked) {
		l.closeSession(session)
		return nil, false, nil
	}
	if err != nil {
		l.closeSession(session)
		return nil, false, fmt.Errorf("failed to lock %s: %w", l.key, err)
	}
	l.log.Debug().Msgf("acquired lock %s", mu.Key())

	return func() {
		// unlock even when the run was canceled
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		err := mu.Unlock(ctx)
		if err != nil {
			l.log.Error().Err(err).Msgf("failed to unlock %s, it expires with the session", l.key)
		}
		l.closeSession(session)
	}, true, nil
}

// newSession grants the session lease with a bounded call per attempt, the
// keepalive then lives as long as ctx.
func (l *Lease) newSession(ctx context.Context) (*concurrency.Session, error) {
	var session *concurrency.Session
	err := retry.Do(
		func() error {
			grantCtx, cancel := context.WithTimeout(ctx, grantTimeout)
			defer cancel()

			grant, err := l.etcd.Grant(grantCtx, int64(l.ttlSeconds))
			if err != nil {
				return err
			}
			s, err := concurrency.NewSession(
				l.etcd,
				concurrency.WithLease(grant.ID),
				concurrency.WithTTL(l.ttlSeconds),
				concurrency.WithContext(ctx),
			)
			if err != nil {
				return err
			}
			session = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			l.log.Warn().Err(err).Msgf("failed to create etcd session, attempt: %d", attempt)
		}),
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (l *Lease) closeSession(session *concurrency.Session) {
	err := session.Close()
	if err != nil {
		l.log.Error().Err(err).Msg("failed to close etcd session")
	}
}

func (l *Lease) Close() error {
	return l.etcd.Close()
}
