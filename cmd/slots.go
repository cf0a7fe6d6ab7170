package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"soundgrid/clip"
	"soundgrid/slot"

	"github.com/spf13/cobra"
)

// slotsCmd groups commands that read or edit the slot database
var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Inspect and manage saved pads",
}

var slotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every pad in button order",
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

		fmt.Printf("%-4s %-24s %-7s %-6s %-6s %-6s %-12s %-5s %s\n",
			"ID", "NAME", "COLOR", "SPEED", "GAIN", "PAN", "ECHO", "LOOP", "AUDIO")
		for _, id := range store.Order() {
			p, err := store.Get(id)
			if err != nil {
				return err
			}
			audio := "-"
			if p.HasClip() {
				audio = p.Clip.Duration().Round(10 * time.Millisecond).String()
			}
			echo := "-"
			if p.EchoActive() {
				echo = fmt.Sprintf("%.2fs/%.2f", p.EchoDelay, p.EchoFeedback)
			}
			fmt.Printf("%-4d %-24s %-7s %-6.2f %-6.2f %-6.2f %-12s %-5t %s\n",
				id, truncate(p.Name, 24), p.Color, p.Speed, p.Gain, p.Balance, echo, p.Loop, audio)
		}
		return nil
	},
}

var slotsDumpCmd = &cobra.Command{
	Use:   "dump <dir>",
	Short: "Write every pad's clip to a directory as WAV files",
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

		dir := args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		written := 0
		for _, id := range store.IDs() {
			p, err := store.Get(id)
			if err != nil {
				return err
			}
			if !p.HasClip() {
				continue
			}
			path := filepath.Join(dir, slot.FileName(id, p.Name))
			if err := writeWAVFile(path, p.Clip); err != nil {
				return err
			}
			slog.Debug("Wrote clip", slog.Int("slot", int(id)), slog.String("path", path))
			written++
		}
		fmt.Printf("Wrote %d clips to %s\n", written, dir)
		return nil
	},
}

var slotsResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Reset a pad to defaults and drop its clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSlotID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		return store.Reset(id)
	},
}

func init() {
	rootCmd.AddCommand(slotsCmd)
	slotsCmd.AddCommand(slotsListCmd)
	slotsCmd.AddCommand(slotsDumpCmd)
	slotsCmd.AddCommand(slotsResetCmd)
}

func parseSlotID(s string) (slot.ID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid slot id %q", s)
	}
	return slot.ID(n), nil
}

func writeWAVFile(path string, b *clip.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := clip.WriteWAV(f, b); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
