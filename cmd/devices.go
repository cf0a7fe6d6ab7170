package cmd

import (
	"fmt"

	"soundgrid/capture"
	"soundgrid/output"

	"github.com/spf13/cobra"
)

var devicesCapture bool

// devicesCmd lists the audio devices the backend can see
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List output (or capture) devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var devices []output.Device
		if devicesCapture {
			devices, err = capture.Devices()
			if err != nil {
				return err
			}
		} else {
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
			defer audio.Close()
			if !audio.SupportsSinkSelection() {
				fmt.Printf("Backend %s cannot route to a specific device, only the default is used\n", cfg.Output.Backend)
			}
			devices, err = audio.Devices()
			if err != nil {
				return err
			}
		}

		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			id := d.ID
			if id == "" {
				id = "(default)"
			}
			fmt.Printf("%s %-40s %s\n", marker, d.Label, id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().BoolVar(&devicesCapture, "capture", false, "list capture devices instead of outputs")
}
