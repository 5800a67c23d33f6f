// Package tokencache holds the process-wide bearer token for the Drive
// API. It exchanges a service-account credential for short-lived tokens
// and memoizes the result until shortly before expiry.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
)

// Fatal credential failures. Neither is ever retried — a malformed secret
// or a refusing identity provider does not get better on a second try.
var (
	ErrConfig = errors.New("tokencache: missing or malformed service credential")
	ErrAuth   = errors.New("tokencache: no usable token from identity provider")
)

const (
	// expiryMargin keeps a cached token from being handed out within
	// this window of its expiry; a token that would expire mid-request
	// is worthless.
	expiryMargin = 30 * time.Second

	// cacheHorizon is the fixed lifetime assigned to cached tokens.
	// Google access tokens live 60 minutes; 50 keeps us safely inside.
	cacheHorizon = 50 * time.Minute

	driveScope = "https://www.googleapis.com/auth/drive"
)

// fetchFunc exchanges the service credential for a fresh bearer token.
type fetchFunc func(ctx context.Context) (string, error)

// Cache is a mutex-guarded single-token cache. Safe for concurrent use;
// two goroutines racing through a refresh both fetch valid tokens and the
// last writer wins, which is harmless.
type Cache struct {
	mu     sync.Mutex
	token  string
	expiry time.Time

	fetch  fetchFunc
	logger *slog.Logger

	// now is replaced in tests to control the clock.
	now func() time.Time
}

// NewServiceAccount builds a Cache over the JWT grant flow for the given
// service-account credential JSON. Returns ErrConfig when the credential
// is absent or unparseable.
func NewServiceAccount(credentialsJSON []byte, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fetch, err := serviceAccountFetch(credentialsJSON)
	if err != nil {
		return nil, err
	}

	return newCache(fetch, logger), nil
}

// NewFromLoader builds a Cache that loads the service-account credential
// through the given loader on each refresh. Construction never fails; a
// missing or malformed credential surfaces as ErrConfig from Token, where
// the caller's error taxonomy maps it to a fatal condition.
func NewFromLoader(load func() ([]byte, error), logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	fetch := func(ctx context.Context) (string, error) {
		creds, err := load()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrConfig, err)
		}

		f, err := serviceAccountFetch(creds)
		if err != nil {
			return "", err
		}

		return f(ctx)
	}

	return newCache(fetch, logger)
}

// serviceAccountFetch validates credential JSON and returns the token
// exchange function for it.
func serviceAccountFetch(credentialsJSON []byte) (fetchFunc, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("%w: empty credential", ErrConfig)
	}

	conf, err := google.JWTConfigFromJSON(credentialsJSON, driveScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return func(ctx context.Context) (string, error) {
		tok, err := conf.TokenSource(ctx).Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}

		if tok.AccessToken == "" {
			return "", fmt.Errorf("%w: empty access token", ErrAuth)
		}

		return tok.AccessToken, nil
	}, nil
}

func newCache(fetch fetchFunc, logger *slog.Logger) *Cache {
	return &Cache{
		fetch:  fetch,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns the cached bearer token, refreshing it first when the
// cache is empty or within expiryMargin of expiry. Satisfies the gdrive
// TokenProvider interface.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.expiry.Add(-expiryMargin)) {
		tok := c.token
		c.mu.Unlock()

		return tok, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock so a slow identity provider does not stall
	// every request in the process. Concurrent refreshes are benign.
	c.logger.Info("fetching fresh bearer token")

	tok, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("token fetch failed", slog.String("error", err.Error()))

		return "", err
	}

	expiry := c.now().Add(cacheHorizon)

	c.mu.Lock()
	c.token = tok
	c.expiry = expiry
	c.mu.Unlock()

	c.logger.Info("cached bearer token", slog.Time("expiry", expiry))

	return tok, nil
}

// Invalidate drops the cached token so the next Token call fetches fresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()

	c.logger.Info("token cache invalidated")
}
