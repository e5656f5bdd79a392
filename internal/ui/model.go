// Package ui is the interactive terminal front end: a bubbletea program
// whose Update loop is the single owner of application state. User input
// and background-task completions arrive as messages and are applied one
// at a time; background work never touches state directly.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/systmms/kvtui/internal/cache"
	"github.com/systmms/kvtui/internal/config"
	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/model"
	"github.com/systmms/kvtui/internal/secure"
)

// welcomeDelay is how long the splash stays up before auto-advancing.
const welcomeDelay = 1500 * time.Millisecond

// remoteService is the slice of the remote façade the UI drives.
type remoteService interface {
	ListVaults(ctx context.Context) ([]model.Vault, error)
	ListSecrets(ctx context.Context, vaultURI string) ([]model.Secret, error)
	GetSecret(ctx context.Context, vaultURI, name string) (model.Secret, error)
	SetSecret(ctx context.Context, vaultURI, name, value string) (model.Secret, error)
	DeleteSecret(ctx context.Context, vaultURI, name string) error
}

type screen int

const (
	screenWelcome screen = iota
	screenVaultSelection
	screenSecretList
)

type modalKind int

const (
	modalNone modalKind = iota
	modalDetail
	modalAdd
	modalEdit
	modalConfirmDelete
)

// banner is the one-line status surface at the bottom of the screen.
type banner struct {
	text  string
	isErr bool
}

// Model holds all application state. Only Update mutates it.
type Model struct {
	ctx    context.Context
	remote remoteService
	store  *cache.Store
	cfg    *config.Config
	logger *logging.Logger

	screen screen
	modal  modalKind

	vaults      []model.Vault
	vaultCursor int

	selected    *model.Vault
	secrets     []model.Secret
	cursor      int
	fetchCancel context.CancelFunc

	searching   bool
	searchInput textinput.Model

	nameInput  textinput.Model
	valueInput textinput.Model
	focusValue bool

	detail *secure.Value

	banner  banner
	loading bool
	spin    spinner.Model

	width  int
	height int

	quitting bool
}

// New builds the initial model. ctx bounds every background operation the
// program starts.
func New(ctx context.Context, remote remoteService, store *cache.Store, cfg *config.Config, logger *logging.Logger) Model {
	if logger == nil {
		logger = logging.Discard()
	}

	search := textinput.New()
	search.Prompt = "/"
	search.CharLimit = 64

	name := textinput.New()
	name.Prompt = "name: "
	name.CharLimit = 127

	value := textinput.New()
	value.Prompt = "value: "
	value.EchoMode = textinput.EchoPassword
	value.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:         ctx,
		remote:      remote,
		store:       store,
		cfg:         cfg,
		logger:      logger,
		screen:      screenWelcome,
		searchInput: search,
		nameInput:   name,
		valueInput:  value,
		spin:        sp,
	}
}

// Init starts the splash timer, the spinner, and vault discovery.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.Tick(welcomeDelay, func(time.Time) tea.Msg { return welcomeDoneMsg{} }),
		m.spin.Tick,
		m.loadVaults(),
	)
}

// selectedVaultURI is the staleness check anchor: background results are
// compared against it at application time.
func (m Model) selectedVaultURI() string {
	if m.selected == nil {
		return ""
	}
	return m.selected.URI
}
