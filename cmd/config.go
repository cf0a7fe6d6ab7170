package cmd

import (
	"fmt"
	"log/slog"

	"soundgrid/config"
	"soundgrid/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating soundgrid configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file, environment variables and flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging for validation
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Configuration is valid")
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file, environment variables and flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Output:\n")
		fmt.Printf("    Backend: %s\n", cfg.Output.Backend)
		fmt.Printf("    Sample rate: %d\n", cfg.Output.SampleRate)
		fmt.Printf("    Buffer: %s\n", cfg.Output.Buffer)
		fmt.Printf("    Device: %s\n", orDefault(cfg.Output.Device))
		fmt.Printf("  Engine:\n")
		fmt.Printf("    Slots: %d\n", cfg.Engine.Slots)
		fmt.Printf("    Instance cap: %d\n", cfg.Engine.InstanceCap)
		fmt.Printf("    Resource limit: %d\n", cfg.Engine.ResourceLimit)
		fmt.Printf("    Sweep: first after %s, then every %s\n", cfg.Engine.InitialSweep, cfg.Engine.SweepInterval)
		fmt.Printf("    Min echo delay: %s\n", cfg.Engine.MinEchoDelay)
		fmt.Printf("    Resample quality: %d\n", cfg.Engine.ResampleQuality)
		fmt.Printf("    Buffer TTL: %s\n", cfg.Engine.BufferTTL)
		fmt.Printf("  Device:\n")
		fmt.Printf("    Poll interval: %s\n", cfg.Device.PollInterval)
		fmt.Printf("  Store:\n")
		fmt.Printf("    Enabled: %t\n", cfg.Store.Enabled)
		fmt.Printf("    Path: %s\n", cfg.Store.Path)
		fmt.Printf("  API:\n")
		fmt.Printf("    Listen: %s\n", cfg.API.Listen)
		fmt.Printf("    Metrics: %t\n", cfg.API.Metrics)
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func orDefault(id string) string {
	if id == "" {
		return "(system default)"
	}
	return id
}
