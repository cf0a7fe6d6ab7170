package cmd

import (
	"fmt"
	"os"
	"time"

	"soundgrid/archive"

	"github.com/spf13/cobra"
)

// exportCmd writes the whole board to a zip archive
var exportCmd = &cobra.Command{
	Use:   "export <out.zip>",
	Short: "Export every pad and the button order to a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		m, err := archive.Export(f, store, time.Now())
		if err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported %d pads (%d with audio) to %s\n", m.SlotCount, m.AudioCount, args[0])
		return nil
	},
}

// importCmd replaces the board with an archive's contents
var importCmd = &cobra.Command{
	Use:   "import <in.zip>",
	Short: "Replace every pad with the contents of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		res, err := archive.Import(f, info.Size(), store)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", args[0], err)
		}
		fmt.Printf("Imported %d pads (%d with audio)\n", res.Slots, res.Audio)
		if res.MissingAudio > 0 {
			fmt.Printf("⚠️  %d clips listed in the manifest were missing from the archive\n", res.MissingAudio)
		}
		if res.Skipped > 0 {
			fmt.Printf("⚠️  %d manifest entries were skipped\n", res.Skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
