package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/output"
	"github.com/joescharf/kan/internal/store"
	kansync "github.com/joescharf/kan/internal/sync"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	engine    *kansync.Engine

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "kan",
	Short: "Kanban boards backed by GitHub issues",
	Long: `kan keeps a local kanban board for each GitHub repository you track.
Tasks are GitHub issues; board columns are derived from issue state and
status labels. Changes flow both ways: moving a card updates the issue,
and syncing pulls remote changes into the local cache.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kan/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "kan")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KAN")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "kan")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "kan.db"))
	viper.SetDefault("github.token", "")
	viper.SetDefault("github.api_url", "https://api.github.com")
	viper.SetDefault("sync.interval_minutes", 5)
	viper.SetDefault("sync.auto_create_labels", true)
	viper.SetDefault("port", 8080)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Store and engine initialize lazily; config/version commands run
	// without a db or token.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// githubToken resolves the API token from config or the GITHUB_TOKEN env var.
func githubToken() (string, error) {
	if tok := viper.GetString("github.token"); tok != "" {
		return tok, nil
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("no GitHub token configured (set github.token in config or GITHUB_TOKEN)")
}

// getEngine returns the shared sync engine, initializing it on first call.
func getEngine() (*kansync.Engine, error) {
	if engine != nil {
		return engine, nil
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}

	token, err := githubToken()
	if err != nil {
		return nil, err
	}

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := forge.NewGitHubClient(tokens, viper.GetString("github.api_url"))

	engine = kansync.New(s, client, kansync.Options{
		AutoCreateLabels: viper.GetBool("sync.auto_create_labels"),
	})
	return engine, nil
}

// resolveProject accepts a project id or an owner/name repo reference.
func resolveProject(ctx context.Context, s store.Store, ref string) (*models.Project, error) {
	if p, err := s.GetProjectByRepo(ctx, ref); err == nil {
		return p, nil
	}
	return s.GetProject(ctx, ref)
}
