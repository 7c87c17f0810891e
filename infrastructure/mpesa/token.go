package mpesa

import (
	"context"
	"errors"
	"sync"
	"time"

	"investor/domain/entities"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// Tokens are treated as expired this long before the gateway says they are
	tokenExpiryMargin = 60 * time.Second

	defaultRefreshTimeout = 30 * time.Second
)

type fetchTokenFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenSource caches the bearer token. Concurrent callers that find it missing or
// expired share a single refresh.
type tokenSource struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
	fetch fetchTokenFunc
	now   func() time.Time

	refreshTimeout time.Duration
	initialBackoff time.Duration
}

func newTokenSource(fetch fetchTokenFunc, now func() time.Time, refreshTimeout time.Duration) *tokenSource {
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}
	return &tokenSource{
		fetch:          fetch,
		now:            now,
		refreshTimeout: refreshTimeout,
		initialBackoff: 200 * time.Millisecond,
	}
}

// Token returns a valid bearer token, refreshing it if needed
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}

	// The refresh is shared, so it must outlive any one caller's context
	ch := s.group.DoChan("token", func() (interface{}, error) {
		if token, ok := s.cached(); ok {
			return token, nil
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &GatewayError{Op: "token", Kind: entities.ErrGatewayUnavailable, Err: ctx.Err()}
	}
}

// Invalidate drops the cached token if it is still the one the caller used
func (s *tokenSource) Invalidate(used string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == used {
		s.token = ""
		s.expiresAt = time.Time{}
	}
}

func (s *tokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

func (s *tokenSource) refresh(ctx context.Context) (string, error) {
	var token string
	var ttl time.Duration

	operation := func() error {
		t, d, err := s.fetch(ctx)
		if err != nil {
			var gwErr *GatewayError
			// Bad credentials will not fix themselves
			if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		token, ttl = t, d
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxElapsedTime = s.refreshTimeout

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.WithError(err).WithField("retry_in", next).Warn("M-Pesa token refresh failed, retrying")
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return "", err
		}
		return "", &GatewayError{Op: "token", Kind: entities.ErrGatewayUnavailable, Err: err}
	}

	lifetime := ttl - tokenExpiryMargin
	if lifetime <= 0 {
		lifetime = ttl / 2
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = s.now().Add(lifetime)
	s.mu.Unlock()

	log.WithField("expires_in", ttl).Debug("Refreshed M-Pesa access token")
	return token, nil
}
