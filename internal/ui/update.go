package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/fuzzy"
	"github.com/systmms/kvtui/internal/model"
)

// Update applies exactly one message to the state. Events illegal in the
// current state fall through and are ignored.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case welcomeDoneMsg:
		if m.screen == screenWelcome {
			m.screen = screenVaultSelection
		}
		return m, nil

	case vaultsLoadedMsg:
		return m.applyVaultsLoaded(msg)

	case secretsLoadedMsg:
		return m.applySecretsLoaded(msg)

	case secretValueMsg:
		return m.applySecretValue(msg)

	case copiedMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus(fmt.Sprintf("copied %q to clipboard", msg.name))
		}
		return m, nil

	case mutationDoneMsg:
		return m.applyMutationDone(msg)

	case preloadDoneMsg:
		m.logger.Debug("preloaded %d vault listing(s)", msg.loaded)
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.screen == screenWelcome {
		m.screen = screenVaultSelection
		return m, nil
	}
	if m.modal != modalNone {
		return m.handleModalKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch m.screen {
	case screenVaultSelection:
		return m.handleVaultKey(msg)
	case screenSecretList:
		return m.handleSecretKey(msg)
	}
	return m, nil
}

func (m Model) handleVaultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vaults := m.visibleVaults()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.vaultCursor > 0 {
			m.vaultCursor--
		}
	case "down", "j":
		if m.vaultCursor < len(vaults)-1 {
			m.vaultCursor++
		}
	case "/":
		m.searching = true
		m.searchInput.Focus()
	case "r":
		m.loading = true
		m.setStatus("discovering vaults...")
		return m, tea.Batch(m.loadVaults(), m.spin.Tick)
	case "enter":
		if m.vaultCursor < len(vaults) {
			return m.selectVault(vaults[m.vaultCursor])
		}
	case "esc":
		if m.searchInput.Value() != "" {
			m.searchInput.Reset()
			m.vaultCursor = 0
		}
	}
	return m, nil
}

func (m Model) handleSecretKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	secrets := m.visibleSecrets()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(secrets)-1 {
			m.cursor++
		}
	case "/":
		m.searching = true
		m.searchInput.Focus()
	case "v":
		return m.backToVaults()
	case "r":
		return m.refreshSecrets()
	case "enter":
		if m.cursor < len(secrets) {
			name := secrets[m.cursor].Name
			m.setStatus(fmt.Sprintf("fetching %q...", name))
			return m, m.fetchValue(m.selectedVaultURI(), name, purposeCopy)
		}
	case " ":
		if m.cursor < len(secrets) && m.open(modalDetail) {
			m.detail = nil
			name := secrets[m.cursor].Name
			return m, m.fetchValue(m.selectedVaultURI(), name, purposeDetail)
		}
	case "a":
		if m.open(modalAdd) {
			m.nameInput.Reset()
			m.valueInput.Reset()
			m.focusValue = false
			m.nameInput.Focus()
			m.valueInput.Blur()
		}
	case "e":
		if m.cursor < len(secrets) && m.open(modalEdit) {
			name := secrets[m.cursor].Name
			m.nameInput.SetValue(name)
			m.nameInput.Blur()
			m.valueInput.Reset()
			m.focusValue = true
			m.valueInput.Focus()
			return m, m.fetchValue(m.selectedVaultURI(), name, purposeEditPrefill)
		}
	case "d":
		if m.cursor < len(secrets) && m.open(modalConfirmDelete) {
			m.nameInput.SetValue(secrets[m.cursor].Name)
		}
	case "esc":
		if m.searchInput.Value() != "" {
			m.searchInput.Reset()
			m.cursor = 0
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		// Escape clears the query and restores the unfiltered view.
		m.searching = false
		m.searchInput.Reset()
		m.searchInput.Blur()
		m.cursor = 0
		m.vaultCursor = 0
		return m, nil
	case tea.KeyEnter:
		// Enter keeps the filter applied and returns focus to the list.
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.cursor = 0
	m.vaultCursor = 0
	return m, cmd
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalDetail:
		switch msg.String() {
		case "esc", "q", "enter":
			m.closeModal()
		}
		return m, nil

	case modalAdd, modalEdit:
		switch msg.Type {
		case tea.KeyEsc:
			m.closeModal()
			return m, nil
		case tea.KeyTab:
			m.focusValue = !m.focusValue
			if m.focusValue {
				m.nameInput.Blur()
				m.valueInput.Focus()
			} else {
				m.valueInput.Blur()
				m.nameInput.Focus()
			}
			return m, nil
		case tea.KeyEnter:
			return m.submitSecretForm()
		}
		var cmd tea.Cmd
		if m.focusValue {
			m.valueInput, cmd = m.valueInput.Update(msg)
		} else if m.modal == modalAdd {
			m.nameInput, cmd = m.nameInput.Update(msg)
		}
		return m, cmd

	case modalConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			name := m.nameInput.Value()
			m.closeModal()
			m.setStatus(fmt.Sprintf("deleting %q...", name))
			return m, m.deleteSecret(m.selectedVaultURI(), name)
		case "n", "esc", "d":
			m.closeModal()
		}
		return m, nil
	}
	return m, nil
}

// submitSecretForm validates and submits the add/edit modal. Validation
// failures surface immediately; no network call is made.
func (m Model) submitSecretForm() (tea.Model, tea.Cmd) {
	name := m.nameInput.Value()
	value := m.valueInput.Value()
	if name == "" {
		m.setError(kverrors.ValidationError{Field: "name", Message: "must not be empty"})
		return m, nil
	}
	m.closeModal()
	m.setStatus(fmt.Sprintf("saving %q...", name))
	return m, m.setSecret(m.selectedVaultURI(), name, value)
}

// selectVault moves to the secret list for a vault. A cached listing is
// shown immediately; a stale one additionally triggers a silent refresh.
func (m *Model) selectVault(vault model.Vault) (tea.Model, tea.Cmd) {
	m.cancelFetch()
	v := vault
	m.selected = &v
	m.screen = screenSecretList
	m.cursor = 0
	m.searching = false
	m.searchInput.Reset()
	m.banner = banner{}

	cached, ok := m.store.Secrets(vault.URI)
	if ok {
		m.secrets = cached
		if m.store.Stale(vault.URI) {
			m.logger.Debug("cached listing for %s is stale, refreshing silently", vault.URI)
			ctx := m.newFetchContext()
			return *m, m.loadSecrets(ctx, vault.URI, true)
		}
		return *m, nil
	}

	m.secrets = nil
	m.loading = true
	ctx := m.newFetchContext()
	return *m, tea.Batch(m.loadSecrets(ctx, vault.URI, false), m.spin.Tick)
}

// backToVaults cancels the outstanding fetch and re-discovers vaults.
func (m *Model) backToVaults() (tea.Model, tea.Cmd) {
	m.cancelFetch()
	m.screen = screenVaultSelection
	m.selected = nil
	m.secrets = nil
	m.cursor = 0
	m.searching = false
	m.searchInput.Reset()
	m.banner = banner{}
	m.loading = true
	return *m, tea.Batch(m.loadVaults(), m.spin.Tick)
}

// refreshSecrets drops the cached listing and refetches.
func (m *Model) refreshSecrets() (tea.Model, tea.Cmd) {
	uri := m.selectedVaultURI()
	if uri == "" {
		return *m, nil
	}
	m.cancelFetch()
	m.store.Invalidate(uri)
	m.loading = true
	ctx := m.newFetchContext()
	return *m, tea.Batch(m.loadSecrets(ctx, uri, false), m.spin.Tick)
}

func (m Model) applyVaultsLoaded(msg vaultsLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		m.setError(msg.err)
		return m, nil
	}
	m.vaults = msg.vaults
	if m.vaultCursor >= len(m.vaults) {
		m.vaultCursor = 0
	}
	m.setStatus(fmt.Sprintf("%d vault(s)", len(m.vaults)))
	return m, m.preloadSecrets(msg.vaults)
}

func (m Model) applySecretsLoaded(msg secretsLoadedMsg) (tea.Model, tea.Cmd) {
	// A listing for a vault the user has navigated away from must never
	// overwrite the current state.
	if msg.vaultURI != m.selectedVaultURI() {
		m.logger.Debug("discarding stale listing for %s", msg.vaultURI)
		return m, nil
	}
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			// A superseded fetch; whatever cancelled it has its own
			// request in flight.
			m.logger.Debug("discarding cancelled listing for %s", msg.vaultURI)
			return m, nil
		}
		if msg.silent {
			m.logger.Debug("silent refresh of %s failed: %v", msg.vaultURI, msg.err)
			return m, nil
		}
		m.loading = false
		m.setError(msg.err)
		return m, nil
	}
	if !msg.silent {
		m.loading = false
	}
	m.secrets = msg.secrets
	if visible := len(m.visibleSecrets()); m.cursor >= visible && visible > 0 {
		m.cursor = visible - 1
	}
	return m, nil
}

func (m Model) applySecretValue(msg secretValueMsg) (tea.Model, tea.Cmd) {
	if msg.vaultURI != m.selectedVaultURI() {
		if msg.value != nil {
			msg.value.Wipe()
		}
		m.logger.Debug("discarding stale value for %s", msg.vaultURI)
		return m, nil
	}
	if msg.err != nil {
		if m.modal == modalDetail || (m.modal == modalEdit && msg.purpose == purposeEditPrefill) {
			m.closeModal()
		}
		m.setError(msg.err)
		return m, nil
	}

	switch msg.purpose {
	case purposeCopy:
		return m, copyToClipboard(msg.value)
	case purposeDetail:
		if m.modal != modalDetail {
			msg.value.Wipe()
			return m, nil
		}
		m.detail = msg.value
	case purposeEditPrefill:
		if m.modal != modalEdit || m.nameInput.Value() != msg.name {
			msg.value.Wipe()
			return m, nil
		}
		// Anything the user typed while the fetch was in flight wins.
		if m.valueInput.Value() != "" {
			msg.value.Wipe()
			return m, nil
		}
		plaintext, err := msg.value.String()
		msg.value.Wipe()
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.valueInput.SetValue(plaintext)
		m.valueInput.CursorEnd()
	}
	return m, nil
}

func (m Model) applyMutationDone(msg mutationDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// The cache stays untouched; the visible list never shows a
		// state the server has not confirmed.
		m.setError(msg.err)
		return m, nil
	}

	switch msg.kind {
	case mutationUpsert:
		m.store.ApplyUpsert(msg.vaultURI, msg.secret)
		m.setStatus(fmt.Sprintf("saved %q", msg.name))
	case mutationDelete:
		m.store.ApplyDelete(msg.vaultURI, msg.name)
		m.setStatus(fmt.Sprintf("deleted %q", msg.name))
	}

	if msg.vaultURI == m.selectedVaultURI() {
		if cached, ok := m.store.Secrets(msg.vaultURI); ok {
			m.secrets = cached
			if visible := len(m.visibleSecrets()); m.cursor >= visible && visible > 0 {
				m.cursor = visible - 1
			}
		}
	}
	return m, nil
}

// open pushes a modal unless one is already up. Modal depth is capped at
// one; a second request is a no-op.
func (m *Model) open(kind modalKind) bool {
	if m.modal != modalNone {
		m.logger.Debug("modal request ignored, one already open")
		return false
	}
	m.modal = kind
	return true
}

func (m *Model) closeModal() {
	if m.detail != nil {
		m.detail.Wipe()
		m.detail = nil
	}
	m.modal = modalNone
	m.nameInput.Reset()
	m.valueInput.Reset()
	m.nameInput.Blur()
	m.valueInput.Blur()
	m.focusValue = false
}

func (m *Model) cancelFetch() {
	if m.fetchCancel != nil {
		m.fetchCancel()
		m.fetchCancel = nil
	}
}

func (m *Model) newFetchContext() context.Context {
	ctx, cancel := context.WithCancel(m.ctx)
	m.fetchCancel = cancel
	return ctx
}

func (m *Model) setStatus(text string) {
	m.banner = banner{text: text}
}

func (m *Model) setError(err error) {
	text := err.Error()
	if s := kverrors.Suggestion(err); s != "" {
		text += " · " + s
	}
	m.banner = banner{text: text, isErr: true}
	m.logger.Error("%s", err.Error())
}

// visibleVaults applies the fuzzy filter to vault names.
func (m Model) visibleVaults() []model.Vault {
	q := m.searchInput.Value()
	if q == "" {
		return m.vaults
	}
	byName := make(map[string]model.Vault, len(m.vaults))
	names := make([]string, len(m.vaults))
	for i, v := range m.vaults {
		names[i] = v.Name
		byName[v.Name] = v
	}
	matched := fuzzy.Filter(q, names)
	out := make([]model.Vault, len(matched))
	for i, name := range matched {
		out[i] = byName[name]
	}
	return out
}

// visibleSecrets applies the fuzzy filter to secret names.
func (m Model) visibleSecrets() []model.Secret {
	q := m.searchInput.Value()
	if q == "" {
		return m.secrets
	}
	byName := make(map[string]model.Secret, len(m.secrets))
	names := make([]string, len(m.secrets))
	for i, s := range m.secrets {
		names[i] = s.Name
		byName[s.Name] = s
	}
	matched := fuzzy.Filter(q, names)
	out := make([]model.Secret, len(matched))
	for i, name := range matched {
		out[i] = byName[name]
	}
	return out
}
