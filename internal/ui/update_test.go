package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/kvtui/internal/cache"
	"github.com/systmms/kvtui/internal/config"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/model"
	"github.com/systmms/kvtui/internal/secure"
)

var (
	vaultA = model.Vault{Name: "vault-a", URI: "https://a.vault.azure.net/", SubscriptionID: "sub"}
	vaultB = model.Vault{Name: "vault-b", URI: "https://b.vault.azure.net/", SubscriptionID: "sub"}
)

// fakeRemote satisfies remoteService in memory.
type fakeRemote struct {
	secrets   map[string][]model.Secret
	getErr    error
	setErr    error
	deleteErr error
	deleted   []string
}

func (f *fakeRemote) ListVaults(context.Context) ([]model.Vault, error) {
	return []model.Vault{vaultA, vaultB}, nil
}

func (f *fakeRemote) ListSecrets(_ context.Context, vaultURI string) ([]model.Secret, error) {
	return f.secrets[vaultURI], nil
}

func (f *fakeRemote) GetSecret(_ context.Context, vaultURI, name string) (model.Secret, error) {
	if f.getErr != nil {
		return model.Secret{}, f.getErr
	}
	return model.Secret{Name: name, Value: "value-of-" + name}, nil
}

func (f *fakeRemote) SetSecret(_ context.Context, vaultURI, name, value string) (model.Secret, error) {
	if f.setErr != nil {
		return model.Secret{}, f.setErr
	}
	return model.Secret{Name: name, Value: value, Version: "v2", Enabled: true}, nil
}

func (f *fakeRemote) DeleteSecret(_ context.Context, vaultURI, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func newTestModel(remote *fakeRemote) (Model, *cache.Store) {
	if remote == nil {
		remote = &fakeRemote{}
	}
	store := cache.New(30*time.Minute, nil)
	m := New(context.Background(), remote, store, config.Default(), nil)
	return m, store
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	return apply(t, m, msg)
}

// atVaultSelection advances past the splash and loads the inventory.
func atVaultSelection(t *testing.T, m Model) Model {
	t.Helper()
	m = apply(t, m, welcomeDoneMsg{})
	m = apply(t, m, vaultsLoadedMsg{vaults: []model.Vault{vaultA, vaultB}})
	require.Equal(t, screenVaultSelection, m.screen)
	return m
}

func TestWelcomeAdvancesOnKey(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	require.Equal(t, screenWelcome, m.screen)

	m = press(t, m, "x")
	assert.Equal(t, screenVaultSelection, m.screen)
}

func TestWelcomeAdvancesOnTimer(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = apply(t, m, welcomeDoneMsg{})
	assert.Equal(t, screenVaultSelection, m.screen)
}

func TestSelectVaultSchedulesFetch(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)

	m = press(t, m, "enter")
	assert.Equal(t, screenSecretList, m.screen)
	require.NotNil(t, m.selected)
	assert.Equal(t, vaultA.URI, m.selected.URI)
	assert.True(t, m.loading)
	assert.NotNil(t, m.fetchCancel, "an in-flight fetch must be cancellable")
}

func TestSelectVaultShowsCachedListingImmediately(t *testing.T) {
	t.Parallel()

	m, store := newTestModel(nil)
	_, err := store.FetchSecrets(context.Background(), vaultA.URI, func(context.Context) ([]model.Secret, error) {
		return []model.Secret{{Name: "cached-secret"}}, nil
	})
	require.NoError(t, err)

	m = atVaultSelection(t, m)
	m = press(t, m, "enter")

	assert.False(t, m.loading, "a fresh cached listing needs no fetch")
	require.Len(t, m.secrets, 1)
	assert.Equal(t, "cached-secret", m.secrets[0].Name)
}

func TestStaleListingDiscardedOnVaultSwitch(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)

	// Select vault A; its listing is still in flight.
	m = press(t, m, "enter")
	require.Equal(t, vaultA.URI, m.selectedVaultURI())

	// Switch to vault B before A's response arrives.
	m = press(t, m, "v")
	m = apply(t, m, vaultsLoadedMsg{vaults: []model.Vault{vaultA, vaultB}})
	m = press(t, m, "j")
	m = press(t, m, "enter")
	require.Equal(t, vaultB.URI, m.selectedVaultURI())

	// A's late response must not overwrite B's state.
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "from-a"}}})
	assert.Empty(t, m.secrets, "vault A's listing must be discarded")

	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultB.URI, secrets: []model.Secret{{Name: "from-b"}}})
	require.Len(t, m.secrets, 1)
	assert.Equal(t, "from-b", m.secrets[0].Name)
}

func TestStaleValueDiscarded(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "s"}}})
	m = press(t, m, "space")
	require.Equal(t, modalDetail, m.modal)

	// A value for a vault no longer selected is dropped.
	m = apply(t, m, secretValueMsg{
		vaultURI: vaultB.URI,
		name:     "s",
		purpose:  purposeDetail,
		value:    secure.HoldString("s", "late"),
	})
	assert.Nil(t, m.detail)

	m = apply(t, m, secretValueMsg{
		vaultURI: vaultA.URI,
		name:     "s",
		purpose:  purposeDetail,
		value:    secure.HoldString("s", "fresh"),
	})
	require.NotNil(t, m.detail)
	got, err := m.detail.String()
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestEditPrefillDoesNotOverwriteTypedValue(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "s"}}})

	m = press(t, m, "e")
	require.Equal(t, modalEdit, m.modal)

	// The user starts typing before the current value arrives.
	m = press(t, m, "n")
	m = press(t, m, "e")
	m = press(t, m, "w")
	require.Equal(t, "new", m.valueInput.Value())

	m = apply(t, m, secretValueMsg{
		vaultURI: vaultA.URI,
		name:     "s",
		purpose:  purposeEditPrefill,
		value:    secure.HoldString("s", "remote-value"),
	})
	assert.Equal(t, "new", m.valueInput.Value(), "typed input must win over the prefill")

	// An untouched field still receives the prefill.
	m = press(t, m, "esc")
	m = press(t, m, "e")
	m = apply(t, m, secretValueMsg{
		vaultURI: vaultA.URI,
		name:     "s",
		purpose:  purposeEditPrefill,
		value:    secure.HoldString("s", "remote-value"),
	})
	assert.Equal(t, "remote-value", m.valueInput.Value())
}

func TestModalDepthCappedAtOne(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "s"}}})

	m = press(t, m, "e")
	require.Equal(t, modalEdit, m.modal)

	// A second modal request while one is open is a no-op, not a queue.
	m = press(t, m, "a")
	assert.Equal(t, modalEdit, m.modal)
	m = press(t, m, "d")
	assert.Equal(t, modalEdit, m.modal)

	m = press(t, m, "esc")
	assert.Equal(t, modalNone, m.modal)
}

func TestIllegalKeysIgnored(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)

	// Secret-list commands mean nothing during vault selection.
	for _, key := range []string{"e", "d", "a", "space", "v"} {
		next := press(t, m, key)
		assert.Equal(t, m.screen, next.screen, "key %q", key)
		assert.Equal(t, modalNone, next.modal, "key %q", key)
	}
}

func TestFailedDeleteLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{deleteErr: kverrors.PermissionError{Operation: "delete secret"}}
	m, store := newTestModel(remote)
	_, err := store.FetchSecrets(context.Background(), vaultA.URI, func(context.Context) ([]model.Secret, error) {
		return []model.Secret{{Name: "keep"}, {Name: "target"}}, nil
	})
	require.NoError(t, err)

	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = press(t, m, "j")
	m = press(t, m, "d")
	require.Equal(t, modalConfirmDelete, m.modal)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m = next.(Model)
	require.NotNil(t, cmd)
	m = apply(t, m, cmd())

	assert.True(t, m.banner.isErr)
	cached, _ := store.Secrets(vaultA.URI)
	assert.Len(t, cached, 2, "a failed delete must not change the cache")
	assert.Len(t, m.secrets, 2)
}

func TestConfirmedDeleteRemovesEntry(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	m, store := newTestModel(remote)
	_, err := store.FetchSecrets(context.Background(), vaultA.URI, func(context.Context) ([]model.Secret, error) {
		return []model.Secret{{Name: "keep"}, {Name: "target"}}, nil
	})
	require.NoError(t, err)

	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = press(t, m, "j")
	m = press(t, m, "d")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m = next.(Model)
	require.NotNil(t, cmd)
	m = apply(t, m, cmd())

	assert.Equal(t, []string{"target"}, remote.deleted)
	cached, _ := store.Secrets(vaultA.URI)
	require.Len(t, cached, 1)
	assert.Equal(t, "keep", cached[0].Name)
	require.Len(t, m.secrets, 1)
	assert.Equal(t, "keep", m.secrets[0].Name)
}

func TestAddSecretValidatesName(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "s"}}})

	m = press(t, m, "a")
	require.Equal(t, modalAdd, m.modal)

	// Submitting with an empty name surfaces a validation error without
	// closing the modal or touching the network.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, modalAdd, m.modal)
	assert.True(t, m.banner.isErr)
}

func TestConfirmedUpsertUpdatesCache(t *testing.T) {
	t.Parallel()

	m, store := newTestModel(&fakeRemote{})
	_, err := store.FetchSecrets(context.Background(), vaultA.URI, func(context.Context) ([]model.Secret, error) {
		return []model.Secret{{Name: "alpha"}}, nil
	})
	require.NoError(t, err)

	m = atVaultSelection(t, m)
	m = press(t, m, "enter")

	m = apply(t, m, mutationDoneMsg{
		vaultURI: vaultA.URI,
		kind:     mutationUpsert,
		secret:   model.Secret{Name: "beta", Version: "v2"},
		name:     "beta",
	})

	cached, _ := store.Secrets(vaultA.URI)
	require.Len(t, cached, 2)
	assert.Equal(t, "alpha", cached[0].Name)
	assert.Equal(t, "beta", cached[1].Name)
	assert.Len(t, m.secrets, 2)
	assert.False(t, m.banner.isErr)
}

func TestSearchFiltersAndEscRestores(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{
		{Name: "db-password"}, {Name: "api-key"}, {Name: "db-user"},
	}})

	m = press(t, m, "/")
	require.True(t, m.searching)
	m = press(t, m, "d")
	m = press(t, m, "b")

	visible := m.visibleSecrets()
	require.Len(t, visible, 2)
	assert.Equal(t, "db-password", visible[0].Name)
	assert.Equal(t, "db-user", visible[1].Name)

	m = press(t, m, "esc")
	assert.False(t, m.searching)
	assert.Len(t, m.visibleSecrets(), 3, "escape restores the unfiltered view")
}

func TestRefreshInvalidatesCache(t *testing.T) {
	t.Parallel()

	m, store := newTestModel(nil)
	_, err := store.FetchSecrets(context.Background(), vaultA.URI, func(context.Context) ([]model.Secret, error) {
		return []model.Secret{{Name: "old"}}, nil
	})
	require.NoError(t, err)

	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = press(t, m, "r")

	_, ok := store.Secrets(vaultA.URI)
	assert.False(t, ok, "refresh drops the cached listing")
	assert.True(t, m.loading)
}

func TestErrorBannerCarriesSuggestion(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")

	m = apply(t, m, secretsLoadedMsg{
		vaultURI: vaultA.URI,
		err:      kverrors.AuthenticationError{Message: "token expired"},
	})
	assert.True(t, m.banner.isErr)
	assert.Contains(t, m.banner.text, "token expired")
	assert.False(t, m.loading)
}

func TestQuitFromList(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestCancelledFetchNeverSurfaced(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")
	m = press(t, m, "r")
	require.True(t, m.loading)

	// The superseded fetch reports its cancellation for the vault that is
	// still selected; the dispatcher drops it, the banner stays clean and
	// the replacement fetch keeps the loading indicator.
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, err: context.Canceled})
	assert.False(t, m.banner.isErr)
	assert.True(t, m.loading)

	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, secrets: []model.Secret{{Name: "refreshed"}}})
	assert.False(t, m.loading)
	require.Len(t, m.secrets, 1)
	assert.Equal(t, "refreshed", m.secrets[0].Name)
}

func TestGenericErrorNotRetriedIntoBanner(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(nil)
	m = atVaultSelection(t, m)
	m = press(t, m, "enter")

	// A silent refresh failure never disturbs the visible state.
	m.secrets = []model.Secret{{Name: "visible"}}
	m = apply(t, m, secretsLoadedMsg{vaultURI: vaultA.URI, err: errors.New("boom"), silent: true})
	assert.Empty(t, m.banner.text)
	require.Len(t, m.secrets, 1)
	assert.Equal(t, "visible", m.secrets[0].Name)
}
