package cmd

import (
	"fmt"

	"soundgrid/clip"

	"github.com/spf13/cobra"
)

var trimThreshold float64

// trimCmd strips leading silence from a file
var trimCmd = &cobra.Command{
	Use:   "trim <in> <out.wav>",
	Short: "Trim leading silence and write a PCM16 WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convert(cmd, args[0], args[1], true)
	},
}

// encodeCmd converts any decodable file to a PCM16 WAV
var encodeCmd = &cobra.Command{
	Use:   "encode <in> <out.wav>",
	Short: "Convert an audio file to a PCM16 WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convert(cmd, args[0], args[1], false)
	},
}

func init() {
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(encodeCmd)

	trimCmd.Flags().Float64Var(&trimThreshold, "threshold", clip.DefaultSilenceThreshold, "absolute amplitude below which a frame is silent")
}

func convert(cmd *cobra.Command, in, out string, trim bool) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	buf, err := clip.Load(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", in, err)
	}
	before := buf.Duration()
	if trim {
		buf = clip.TrimLeadingSilence(buf, trimThreshold)
	}
	if buf.Len() == 0 {
		return clip.ErrEmptyClip
	}
	if err := writeWAVFile(out, buf); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%s", out, buf.Duration())
	if trim {
		fmt.Printf(", trimmed %s", before-buf.Duration())
	}
	fmt.Println(")")
	return nil
}
