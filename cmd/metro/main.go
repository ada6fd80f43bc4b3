package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/storage"
)

var rootCmd = &cobra.Command{
	Use:          "metro",
	Short:        "Kharkiv metro route planner",
	Long:         "Plans journeys and serves timetables for the Kharkiv metro.",
	SilenceUsage: true,
}

var (
	configPath string
	dbPath     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: XDG config directory)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Path to database file (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(stationsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	godotenv.Load()

	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		switch strings.ToLower(raw) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the store at the resolved path. When require is set the
// file must already exist; the CLI never auto-initializes.
func openStore(cfg *config.Config, require bool) (*storage.Store, error) {
	path := cfg.DBPath(dbPath)
	if require && !storage.Exists(path) {
		return nil, errors.Wrapf(metro.ErrStoreUnavailable, "%s (run 'metro init' first)", path)
	}
	return storage.Shared(path)
}

func newRouter(store *storage.Store) (*metro.Router, error) {
	network, err := metro.NewNetwork()
	if err != nil {
		return nil, err
	}
	return metro.NewRouter(store, network, metro.NewGraph(network), config.Timezone()), nil
}
