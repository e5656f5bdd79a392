// Package tokencache caches access tokens per scope with single-flight
// acquisition.
//
// The cache implements azcore.TokenCredential, so the data-plane SDK
// clients and the ARM discovery client both draw tokens through it: one
// cache, one acquisition per scope, regardless of how many clients exist.
// Tokens live only in process memory.
package tokencache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Cache is a per-scope token cache over an inner credential.
type Cache struct {
	inner  azcore.TokenCredential
	skew   time.Duration
	logger *logging.Logger

	mu     sync.Mutex
	tokens map[string]azcore.AccessToken
	group  singleflight.Group
}

// New creates a cache over inner. skew is subtracted from each token's
// stated expiry; a token within the margin is treated as expired.
func New(inner azcore.TokenCredential, skew time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		inner:  inner,
		skew:   skew,
		logger: logger,
		tokens: make(map[string]azcore.AccessToken),
	}
}

// GetToken returns a cached token while it has more than the skew margin
// of validity left, acquiring through the inner credential otherwise.
// Concurrent callers for the same scope set share one acquisition and
// receive the same token or the same failure. A failed acquisition leaves
// the entry unset so the next call retries.
func (c *Cache) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	key := strings.Join(opts.Scopes, " ")

	if tok, ok := c.cached(key); ok {
		return tok, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A caller that queued behind a completed acquisition finds the
		// fresh token here instead of acquiring again.
		if tok, ok := c.cached(key); ok {
			return tok, nil
		}

		c.logger.Debug("acquiring token for scope %q", key)
		tok, err := c.inner.GetToken(ctx, opts)
		if err != nil {
			return azcore.AccessToken{}, kverrors.AuthenticationError{Err: err}
		}

		c.mu.Lock()
		c.tokens[key] = tok
		c.mu.Unlock()
		c.logger.Debug("token for scope %q valid until %s", key, tok.ExpiresOn.Format(time.RFC3339))
		return tok, nil
	})
	if err != nil {
		return azcore.AccessToken{}, err
	}
	if shared {
		c.logger.Debug("token acquisition for scope %q shared by concurrent callers", key)
	}
	return v.(azcore.AccessToken), nil
}

// cached returns the token for key if it is still outside the skew margin.
func (c *Cache) cached(key string) (azcore.AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[key]
	if !ok {
		return azcore.AccessToken{}, false
	}
	if !time.Now().Before(tok.ExpiresOn.Add(-c.skew)) {
		return azcore.AccessToken{}, false
	}
	return tok, true
}

// Clear drops all cached tokens.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = make(map[string]azcore.AccessToken)
}
