package ui

import (
	"github.com/systmms/kvtui/internal/model"
	"github.com/systmms/kvtui/internal/secure"
)

// welcomeDoneMsg dismisses the splash screen.
type welcomeDoneMsg struct{}

// vaultsLoadedMsg carries the complete merged vault inventory.
type vaultsLoadedMsg struct {
	vaults []model.Vault
	err    error
}

// secretsLoadedMsg carries a complete secret listing. vaultURI identifies
// which vault the listing belongs to so the dispatcher can discard results
// for vaults the user has navigated away from. silent refreshes update the
// list without touching the loading indicator or banner.
type secretsLoadedMsg struct {
	vaultURI string
	secrets  []model.Secret
	err      error
	silent   bool
}

// valuePurpose says what a fetched secret value is for.
type valuePurpose int

const (
	purposeCopy valuePurpose = iota
	purposeDetail
	purposeEditPrefill
)

// secretValueMsg carries a fetched secret value, sealed.
type secretValueMsg struct {
	vaultURI string
	name     string
	value    *secure.Value
	purpose  valuePurpose
	err      error
}

// copiedMsg reports the outcome of a clipboard write.
type copiedMsg struct {
	name string
	err  error
}

// mutationKind distinguishes confirmed mutations.
type mutationKind int

const (
	mutationUpsert mutationKind = iota
	mutationDelete
)

// mutationDoneMsg reports a confirmed (or failed) remote mutation. The
// cache is updated only on success, at application time.
type mutationDoneMsg struct {
	vaultURI string
	kind     mutationKind
	secret   model.Secret
	name     string
	err      error
}

// preloadDoneMsg reports completion of the background cache warm-up.
type preloadDoneMsg struct {
	loaded int
	err    error
}
