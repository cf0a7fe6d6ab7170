package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"soundgrid/board"
	"soundgrid/config"
	"soundgrid/logger"
	"soundgrid/persist"
	"soundgrid/slot"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "soundgrid",
	Short: "A soundboard with a playback engine and HTTP control surface",
	Long: `Soundgrid is a soundboard: a fixed grid of pads, each holding a clip and the
parameters used to play it (speed, balance, gain, echo, loop).

Running without a subcommand starts the playback engine and serves the HTTP API
used to edit, trigger and stop pads.`,
	RunE:         runServer,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("backend", "malgo", "audio backend (malgo, speaker, headless)")
	rootCmd.PersistentFlags().String("output-device", "", "output device id (empty for the system default)")
	rootCmd.PersistentFlags().String("db", "soundgrid.db", "path to the slot database")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Local flags for the server command
	rootCmd.Flags().StringP("listen", "l", ":8080", "HTTP listen address")
	rootCmd.Flags().Int("slots", slot.DefaultCount, "number of pads on the board")
	rootCmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics")

	// Bind flags to viper
	viper.BindPFlag("output.backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("output.device", rootCmd.PersistentFlags().Lookup("output-device"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("api.listen", rootCmd.Flags().Lookup("listen"))
	viper.BindPFlag("engine.slots", rootCmd.Flags().Lookup("slots"))
	viper.BindPFlag("api.metrics", rootCmd.Flags().Lookup("metrics"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// loadConfig loads, validates and applies the logging configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return cfg, nil
}

// openStore loads the board's pads from the database. The returned close
// function must be called once the store is no longer used.
func openStore(cfg *config.Config) (*slot.Store, func() error, error) {
	store := slot.NewStore(cfg.Engine.Slots)
	db, err := persist.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open slot database: %w", err)
	}
	if err := store.Attach(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// runServer starts the main application
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Create and initialize the board
	b := board.New(cfg)
	if err := b.Initialize(); err != nil {
		_ = b.Stop()
		return fmt.Errorf("failed to initialize board: %w", err)
	}

	// Start the board
	if err := b.Start(); err != nil {
		_ = b.Stop()
		return fmt.Errorf("failed to start board: %w", err)
	}

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, shutting down gracefully...\n", sig)
	case err := <-b.Error():
		fmt.Printf("Error occurred: %v\n", err)
	}

	// Graceful shutdown
	if err := b.Stop(); err != nil {
		return fmt.Errorf("failed to stop board gracefully: %w", err)
	}

	return nil
}
