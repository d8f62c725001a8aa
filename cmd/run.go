package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/engine"
	"github.com/fakeyudi/minutes/internal/hiragana"
	"github.com/fakeyudi/minutes/internal/recognition"
	"github.com/fakeyudi/minutes/internal/storage"
	"github.com/fakeyudi/minutes/internal/tui"
)

var (
	replayPath  string
	replayDelay time.Duration
	exportDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the live transcription view",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var (
			eng   recognition.Engine
			synth app.Synthesizer
		)
		switch {
		case replayPath != "":
			f, err := os.Open(replayPath)
			if err != nil {
				return fmt.Errorf("opening replay: %w", err)
			}
			defer f.Close()
			eng = engine.NewReplayEngine(f, replayDelay, logger.Named("replay"))
		default:
			se, err := engine.Dial(cfg.Socket, logger.Named("engine"))
			if err != nil {
				// Recognition is disabled; everything else still works.
				logger.Warn("speech daemon unavailable", zap.String("socket", cfg.Socket), zap.Error(err))
				break
			}
			defer se.Close()
			eng, synth = se, se
		}

		a, err := app.Open(cfg, eng, synth, logger)
		if err != nil {
			return err
		}
		defer func() {
			a.Snapshot()
			a.Close()
		}()

		if a.Restore() {
			logger.Info("restored previous transcript")
		}

		opts := tui.Options{ExportDir: exportDir, Logger: logger}
		if !noDict {
			opts.Dictionary = hiragana.LoadKagome
		}
		if fs, ok := a.Store().(*storage.FileStore); ok {
			opts.Watch = fs.Watch
		}
		return tui.Run(ctx, a, opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&replayPath, "replay", "", "replay recorded recognizer events (NDJSON) instead of the daemon")
	runCmd.Flags().DurationVar(&replayDelay, "replay-delay", 300*time.Millisecond, "pause between replayed events")
	runCmd.Flags().StringVarP(&exportDir, "output", "o", ".", "directory for saved and exported files")
	rootCmd.AddCommand(runCmd)
}
