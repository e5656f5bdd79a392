// Package cache holds the in-memory resource caches: the process-wide
// vault listing and per-vault secret listings.
//
// Cached values are immutable snapshots: every entry is copied on the way
// in and on the way out, so published listings are never mutated in place.
// Single-flight bookkeeping collapses concurrent fetches for the same
// vault into one network round-trip. Secret values are never stored here.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/model"
	"golang.org/x/sync/singleflight"
)

type secretEntry struct {
	items       []model.Secret
	refreshedAt time.Time
}

// Store is the resource cache.
type Store struct {
	refreshAfter time.Duration
	logger       *logging.Logger

	mu        sync.Mutex
	vaults    []model.Vault
	vaultsSet bool
	secrets   map[string]secretEntry
	group     singleflight.Group
}

// New creates an empty store. refreshAfter is the age past which a cached
// secret listing is reported stale.
func New(refreshAfter time.Duration, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		refreshAfter: refreshAfter,
		logger:       logger,
		secrets:      make(map[string]secretEntry),
	}
}

// Vaults returns a copy of the cached vault listing and whether one has
// been published yet.
func (s *Store) Vaults() ([]model.Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.vaultsSet {
		return nil, false
	}
	return append([]model.Vault(nil), s.vaults...), true
}

// SetVaults publishes a complete vault listing, replacing any previous
// one. Callers only pass fully merged listings; partial pages never reach
// the cache.
func (s *Store) SetVaults(vaults []model.Vault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults = append([]model.Vault(nil), vaults...)
	s.vaultsSet = true
}

// Secrets returns a copy of the cached secret listing for a vault.
func (s *Store) Secrets(vaultURI string) ([]model.Secret, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.secrets[vaultURI]
	if !ok {
		return nil, false
	}
	return append([]model.Secret(nil), entry.items...), true
}

// Stale reports whether the cached listing for a vault is older than the
// refresh threshold. A missing entry is stale.
func (s *Store) Stale(vaultURI string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.secrets[vaultURI]
	if !ok {
		return true
	}
	return time.Since(entry.refreshedAt) > s.refreshAfter
}

// FetchSecrets loads the secret listing for a vault through fetch and
// publishes it. Concurrent calls for the same vault share one in-flight
// fetch and observe the same result or the same failure; a failure leaves
// any existing cached listing untouched.
func (s *Store) FetchSecrets(ctx context.Context, vaultURI string, fetch func(ctx context.Context) ([]model.Secret, error)) ([]model.Secret, error) {
	flight := func() (interface{}, error) {
		items, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.publish(vaultURI, items)
		return items, nil
	}

	v, err, shared := s.group.Do(vaultURI, flight)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// The caller joined an in-flight fetch whose originating context
		// was cancelled (a superseded refresh). This caller is still
		// live, so the cancelled result is not its answer: drop the dead
		// flight and fetch fresh.
		s.group.Forget(vaultURI)
		v, err, shared = s.group.Do(vaultURI, flight)
	}
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("secret fetch for %s shared by concurrent callers", vaultURI)
	}
	return append([]model.Secret(nil), v.([]model.Secret)...), nil
}

// publish stores a complete listing. Values are stripped: listings cache
// metadata only.
func (s *Store) publish(vaultURI string, items []model.Secret) {
	stored := make([]model.Secret, len(items))
	copy(stored, items)
	for i := range stored {
		stored[i].Value = ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[vaultURI] = secretEntry{items: stored, refreshedAt: time.Now()}
	s.logger.Debug("cached %d secret(s) for %s", len(stored), vaultURI)
}

// ApplyUpsert records a confirmed create or update in the cached listing,
// keeping it sorted by name. A vault with no cached listing is left alone;
// the next fetch will pick the secret up.
func (s *Store) ApplyUpsert(vaultURI string, secret model.Secret) {
	secret.Value = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.secrets[vaultURI]
	if !ok {
		return
	}
	items := append([]model.Secret(nil), entry.items...)
	replaced := false
	for i := range items {
		if items[i].Name == secret.Name {
			items[i] = secret
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, secret)
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	}
	s.secrets[vaultURI] = secretEntry{items: items, refreshedAt: entry.refreshedAt}
}

// ApplyDelete removes a confirmed-deleted secret from the cached listing.
func (s *Store) ApplyDelete(vaultURI, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.secrets[vaultURI]
	if !ok {
		return
	}
	items := make([]model.Secret, 0, len(entry.items))
	for _, item := range entry.items {
		if item.Name != name {
			items = append(items, item)
		}
	}
	s.secrets[vaultURI] = secretEntry{items: items, refreshedAt: entry.refreshedAt}
}

// Invalidate drops the cached listing for a vault. Any in-flight fetch is
// forgotten as well, so the next FetchSecrets starts fresh instead of
// joining a superseded call.
func (s *Store) Invalidate(vaultURI string) {
	s.group.Forget(vaultURI)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, vaultURI)
}
