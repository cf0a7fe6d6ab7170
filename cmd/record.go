package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soundgrid/capture"
	"soundgrid/clip"
	"soundgrid/slot"

	"github.com/spf13/cobra"
)

var recordFlags struct {
	duration time.Duration
	device   string
	name     string
}

// recordCmd captures from an input device straight onto a pad
var recordCmd = &cobra.Command{
	Use:   "record <slot>",
	Short: "Record from an input device onto a pad",
	Long: `Record from a capture device for the given duration (or until Ctrl-C), trim the
leading silence and store the result as the pad's clip.`,
	Args: cobra.ExactArgs(1),
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
		if _, err := store.Get(id); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Recording for %s, press Ctrl-C to stop early...\n", recordFlags.duration)
		buf, err := capture.Record(ctx, capture.Options{
			DeviceID:   recordFlags.device,
			SampleRate: cfg.Output.SampleRate,
		}, recordFlags.duration)
		if err != nil {
			return err
		}

		buf = clip.TrimLeadingSilence(buf, clip.DefaultSilenceThreshold)
		if buf.Len() == 0 {
			return clip.ErrEmptyClip
		}
		patch := slot.Patch{Clip: buf}
		if recordFlags.name != "" {
			patch.Name = &recordFlags.name
		}
		if _, err := store.Set(id, patch); err != nil {
			return err
		}
		fmt.Printf("Stored %s on pad %d\n", buf.Duration().Round(time.Millisecond), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().DurationVarP(&recordFlags.duration, "duration", "d", 5*time.Second, "maximum recording length")
	recordCmd.Flags().StringVar(&recordFlags.device, "input", "", "capture device id (empty for the system default)")
	recordCmd.Flags().StringVar(&recordFlags.name, "name", "", "pad name")
}
