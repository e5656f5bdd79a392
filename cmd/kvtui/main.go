package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/systmms/kvtui/internal/cache"
	"github.com/systmms/kvtui/internal/config"
	"github.com/systmms/kvtui/internal/identity"
	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/remote"
	"github.com/systmms/kvtui/internal/secure"
	"github.com/systmms/kvtui/internal/tokencache"
	"github.com/systmms/kvtui/internal/ui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		logFile    string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "kvtui",
		Short: "Browse and manage Azure Key Vault secrets from the terminal",
		Long: `kvtui discovers the Key Vaults your credential can see, lets you
fuzzy-search their secrets, and copies, creates, edits or deletes
secrets without leaving the terminal.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(configFile, logFile, debug)
		},
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file path (default ~/.config/kvtui.yaml)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Debug log file path (default from config)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Write diagnostic logging to the log file")

	return rootCmd.Execute()
}

func runTUI(configFile, logFile string, debug bool) error {
	// Wipe any protected memory still live when the process exits.
	defer secure.Purge()

	if configFile == "" {
		configFile = config.DefaultPath()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	// The TUI owns the terminal, so diagnostics go to a file or nowhere.
	logger := logging.Discard()
	if debug {
		var closer io.Closer
		logger, closer, err = logging.OpenFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer closer.Close()
		logger.Info("kvtui %s starting", version)
	}

	ctx := context.Background()

	cred, err := identity.NewCredential(logger)
	if err != nil {
		return err
	}
	// A credential that cannot mint a token now would fail every call
	// later; better to exit before taking over the terminal.
	if err := identity.Validate(ctx, cred, cfg.ARM.Endpoint, cfg.Retry.RequestTimeout); err != nil {
		return err
	}

	tokens := tokencache.New(cred, cfg.Token.SkewMargin, logger)
	client := remote.New(tokens, cfg.Retry, cfg.ARM, logger)
	store := cache.New(cfg.Cache.RefreshAfter, logger)

	program := tea.NewProgram(
		ui.New(ctx, client, store, cfg, logger),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal session failed: %w", err)
	}
	logger.Info("kvtui exiting")
	return nil
}
