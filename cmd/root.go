package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/output"
	"github.com/joescharf/issuetracker/internal/store"
	"github.com/joescharf/issuetracker/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issuetracker",
	Short: "Issue Tracker - a small project-scoped issue API",
	Long: `issuetracker serves a JSON API for creating, listing, updating and
deleting issues grouped by project, and ships a CLI client and an MCP
server over the same operations.`,
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
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issuetracker/config.yaml)")
}

func initConfig() {
	configDir, err := configDirFunc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
		os.Exit(1)
	}

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUETRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(configDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default. stateDir is the
// directory holding the config file, PID file and server log.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("port", 3000)
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("db_path", store.MemoryDSN)
	viper.SetDefault("api.strict_status", false)
	viper.SetDefault("api.cors", true)
	viper.SetDefault("server.url", "http://localhost:3000")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	slog.SetDefault(newLogger(os.Stderr))
}

// newLogger builds the process logger from log.level and log.format.
// --verbose forces debug.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore opens the backend named by store.driver. Server-side commands
// open exactly one store and inject it; there is no shared instance.
func openStore(ctx context.Context) (store.Store, error) {
	switch driver := viper.GetString("store.driver"); driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		dbPath := viper.GetString("db_path")
		if dbPath != store.MemoryDSN && !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(viper.GetString("state_dir"), dbPath)
		}
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (use memory or sqlite)", driver)
	}
}

// newService wires the tracker over s with the process logger.
func newService(s store.Store) *tracker.Service {
	return tracker.New(s, slog.Default())
}
