//go:build tesseract

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blink/internal/scanner"
)

func init() {
	extraScanCommands = append(extraScanCommands, newScanImagesCommand)
}

func newScanImagesCommand(ctx *commandContext, opts *scanOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "images <image>...",
		Short: "Recognize still images with tesseract, one frame per image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images := make(chan []byte)
			errs := make(chan error, 1)
			go func() {
				defer close(images)
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						errs <- fmt.Errorf("read image: %w", err)
						return
					}
					select {
					case images <- data:
					case <-cmd.Context().Done():
						return
					}
				}
			}()

			// Recognized images carry real timestamps, so the throttle is off.
			o := *opts
			o.minInterval = 0
			if err := runScan(cmd, ctx, &o, scanner.NewTesseractSource(images)); err != nil {
				return err
			}
			select {
			case err := <-errs:
				return err
			default:
				return nil
			}
		},
	}
}
