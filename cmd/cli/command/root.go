package command

// root.go defines the root command for the librarianCLI application.
// set up the global flags and shared engine construction here.

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/engine"
	"librarian/internal/token"
)

var (
	apiURL string // Global flag for API server URL
	cfg    *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "librarianCLI",
	Short: "librarianCLI - Library Lending Command Line Interface",
	Long: `librarianCLI is a tool for interacting with the library lending API.
It keeps a local view of the catalog and your loans so repeated commands
stay fast. Members can:
- Browse and borrow books
- Track loans and due dates
- Reserve books and convert ready reservations into loans

Staff accounts additionally manage the catalog, users and reservations.

Use "librarianCLI command -h" to see all available commands.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	loaded, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if err := loaded.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = loaded

	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", cfg.APIBaseURL, "API server URL")
}

// newEngine builds the consistency engine a command runs against. The
// token store reads any credential persisted by a previous login.
func newEngine() *engine.Engine {
	tokens := token.NewStore()
	client := api.NewWithTimeout(apiURL, tokens, cfg.RequestTimeout)
	return engine.New(client, tokens, engine.Options{
		Logger:           newLogger(),
		RefetchPerSecond: cfg.RefetchPerSecond,
		RefetchBurst:     cfg.RefetchBurst,
		BooksPageSize:    cfg.BooksPageSize,
		PanelPageSize:    cfg.PanelPageSize,
	})
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
