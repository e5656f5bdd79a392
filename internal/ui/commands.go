package ui

import (
	"context"
	"sync/atomic"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/model"
	"github.com/systmms/kvtui/internal/secure"
	"golang.org/x/sync/errgroup"
)

// loadVaults discovers the vault inventory and publishes it to the cache.
func (m Model) loadVaults() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		vaults, err := m.remote.ListVaults(ctx)
		if err != nil {
			return vaultsLoadedMsg{err: err}
		}
		m.store.SetVaults(vaults)
		return vaultsLoadedMsg{vaults: vaults}
	}
}

// loadSecrets fetches a vault's secret listing through the cache's
// single-flight gate. ctx is the per-fetch context so a vault switch can
// cancel the outstanding request.
func (m Model) loadSecrets(ctx context.Context, vaultURI string, silent bool) tea.Cmd {
	return func() tea.Msg {
		secrets, err := m.store.FetchSecrets(ctx, vaultURI, func(ctx context.Context) ([]model.Secret, error) {
			return m.remote.ListSecrets(ctx, vaultURI)
		})
		return secretsLoadedMsg{vaultURI: vaultURI, secrets: secrets, err: err, silent: silent}
	}
}

// fetchValue retrieves a secret's current value on demand and seals it.
// Values are never cached; each reveal is a fresh fetch.
func (m Model) fetchValue(vaultURI, name string, purpose valuePurpose) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		secret, err := m.remote.GetSecret(ctx, vaultURI, name)
		if err != nil {
			return secretValueMsg{vaultURI: vaultURI, name: name, purpose: purpose, err: err}
		}
		m.logger.Debug("fetched value for %s: %s", name, logging.Secret(secret.Value))
		return secretValueMsg{
			vaultURI: vaultURI,
			name:     name,
			purpose:  purpose,
			value:    secure.HoldString(name, secret.Value),
		}
	}
}

// copyToClipboard reveals a sealed value just long enough to hand it to
// the system clipboard.
func copyToClipboard(value *secure.Value) tea.Cmd {
	return func() tea.Msg {
		plaintext, err := value.String()
		if err == nil {
			err = clipboard.WriteAll(plaintext)
		}
		value.Wipe()
		return copiedMsg{name: value.Name(), err: err}
	}
}

// setSecret performs a confirmed create or update.
func (m Model) setSecret(vaultURI, name, value string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		secret, err := m.remote.SetSecret(ctx, vaultURI, name, value)
		return mutationDoneMsg{vaultURI: vaultURI, kind: mutationUpsert, secret: secret, name: name, err: err}
	}
}

// deleteSecret performs a confirmed soft-delete.
func (m Model) deleteSecret(vaultURI, name string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := m.remote.DeleteSecret(ctx, vaultURI, name)
		return mutationDoneMsg{vaultURI: vaultURI, kind: mutationDelete, name: name, err: err}
	}
}

// preloadSecrets warms the cache with every vault's listing after
// discovery, with bounded fan-out. Failures are tolerated per vault; the
// interactive path will fetch on demand for anything missed.
func (m Model) preloadSecrets(vaults []model.Vault) tea.Cmd {
	ctx := m.ctx
	limit := m.cfg.Cache.PreloadConcurrency
	if limit < 1 || len(vaults) == 0 {
		return nil
	}
	return func() tea.Msg {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		var loaded atomic.Int64
		for _, vault := range vaults {
			uri := vault.URI
			g.Go(func() error {
				_, err := m.store.FetchSecrets(gctx, uri, func(ctx context.Context) ([]model.Secret, error) {
					return m.remote.ListSecrets(ctx, uri)
				})
				if err != nil {
					m.logger.Debug("preload of %s failed: %v", uri, err)
					return nil
				}
				loaded.Add(1)
				return nil
			})
		}
		err := g.Wait()
		return preloadDoneMsg{loaded: int(loaded.Load()), err: err}
	}
}
