package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/config"
	"github.com/sweeney/source-watcher/internal/detect"
	"github.com/sweeney/source-watcher/internal/logic"
	"github.com/sweeney/source-watcher/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Read one frame, run detection and print the result",
	Long: `Opens the configured source, reads a single frame, sends it to the
detector and prints every detection plus the resulting presence signal.
Useful for checking camera and detector settings before running the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		opts, err := cfg.SourceOptions()
		if err != nil {
			return err
		}
		opts.ReadRetries = 0
		src, err := source.Open(ctx, opts)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer src.Close()

		det := detect.NewHTTPDetector(detect.Config{
			BaseURL: cfg.Detector.URL,
			Path:    cfg.Detector.Path,
			Timeout: cfg.Detector.Timeout,
			APIKey:  cfg.Detector.APIKey,
		}, zap.NewNop())

		return runCheck(ctx, src, det, cfg.Presence.Label, cfg.Presence.Threshold, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck reads one frame from src, runs det on it and writes the
// detections and presence signal to w.
func runCheck(ctx context.Context, src source.Source, det detect.Detector, label string, threshold float64, w io.Writer) error {
	frame, err := src.Next(ctx)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}

	dets, err := det.Detect(ctx, frame)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	fmt.Fprintf(w, "frame %d: %d bytes, %d detections\n", frame.Seq, len(frame.Image), len(dets))
	for _, d := range dets {
		mark := " "
		if logic.Qualifies(d, label, threshold) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-12s %.2f [%d,%d %d,%d]\n",
			mark, d.Label, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}

	presence := logic.PresenceClear
	if logic.Classify(dets, label, threshold) {
		presence = logic.PresenceOccupied
	}
	fmt.Fprintf(w, "presence: %s (label=%s threshold=%.2f)\n", presence, label, threshold)
	return nil
}
