package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"soundgrid/board"
	"soundgrid/clip"
	"soundgrid/device"
	"soundgrid/engine"
	"soundgrid/output"
	"soundgrid/slot"

	"github.com/spf13/cobra"
)

var playFlags struct {
	speed        float64
	balance      float64
	gain         float64
	echoDelay    float64
	echoFeedback float64
	loop         bool
	trim         bool
}

// playCmd plays one file through the engine, as if it sat on a pad
var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play an audio file with pad parameters",
	Long: `Play a WAV, MP3 or any ffmpeg-decodable file through the playback engine using
the same parameters a pad would: speed, balance, gain, echo and loop.

Playback ends when the clip (and its echoes) finish, or on Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Float64Var(&playFlags.speed, "speed", 1, "playback speed (0, 4]")
	playCmd.Flags().Float64Var(&playFlags.balance, "balance", 0, "stereo balance [-1, 1]")
	playCmd.Flags().Float64Var(&playFlags.gain, "gain", 1, "linear gain [0, 2]")
	playCmd.Flags().Float64Var(&playFlags.echoDelay, "echo-delay", 0, "echo delay in seconds, 0 disables echo")
	playCmd.Flags().Float64Var(&playFlags.echoFeedback, "echo-feedback", 0, "echo feedback [0, 0.8]")
	playCmd.Flags().BoolVar(&playFlags.loop, "loop", false, "loop until interrupted")
	playCmd.Flags().BoolVar(&playFlags.trim, "trim", true, "trim leading silence")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.EqualFold(cfg.Output.Backend, "headless") {
		return errors.New("play needs an audio backend, headless never renders")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buf, err := clip.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	if playFlags.trim {
		buf = clip.TrimLeadingSilence(buf, clip.DefaultSilenceThreshold)
	}

	store := slot.NewStore(1)
	_, err = store.Set(0, slot.Patch{
		Clip:         buf,
		Speed:        &playFlags.speed,
		Balance:      &playFlags.balance,
		Gain:         &playFlags.gain,
		EchoDelay:    &playFlags.echoDelay,
		EchoFeedback: &playFlags.echoFeedback,
		Loop:         &playFlags.loop,
	})
	if err != nil {
		return err
	}

	factory, err := output.NewFactory(output.Options{
		Backend:    cfg.Output.Backend,
		SampleRate: cfg.Output.SampleRate,
		Buffer:     cfg.Output.Buffer,
	})
	if err != nil {
		return err
	}
	audio, err := factory()
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	router := device.NewRouter(audio.SupportsSinkSelection())
	if devices, err := audio.Devices(); err == nil {
		router.Update(devices)
	}
	if cfg.Output.Device != "" {
		if err := router.Select(cfg.Output.Device); err != nil {
			slog.Warn("Output device not selectable, using default",
				slog.String("device", cfg.Output.Device),
				slog.Any("error", err))
		}
	}

	eng := engine.New(board.EngineConfig(cfg.Engine), store, router, factory, engine.WithContext(audio))
	defer eng.Stop()
	if err := eng.Start(); err != nil {
		return err
	}

	slog.Info("Playing",
		slog.String("file", args[0]),
		slog.Duration("duration", buf.Duration()))
	if err := eng.Trigger(ctx, 0); err != nil {
		return err
	}
	return waitIdle(ctx, eng, 0)
}

// waitIdle blocks until the slot has nothing left to play or ctx ends.
func waitIdle(ctx context.Context, eng *engine.Engine, id slot.ID) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return eng.StopSlot(context.Background(), id)
		case <-ticker.C:
			if !eng.IsPlaying(id) {
				return nil
			}
		}
	}
}
