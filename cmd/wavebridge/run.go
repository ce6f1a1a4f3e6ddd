package main

import (
	"context"
	"time"

	"github.com/petems/wavebridge/internal/app"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture headless and log waveform levels periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup()
			if err != nil {
				return err
			}
			defer e.backend.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			application := e.newApp(nil)
			if err := application.Start(ctx); err != nil {
				return err
			}
			defer e.registerHotkey(application)()
			e.log.Info().Msg("WaveBridge starting...")

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				report(ctx, application, interval, e.log)
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				e.log.Info().Msg("Shutting down...")
				return application.Shutdown(context.Background())
			})
			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "how often to log levels")
	return cmd
}

func report(ctx context.Context, application *app.App, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := application.Stats()
			log.Info().
				Str("state", application.State().String()).
				Uint64("delivered", stats.Delivered).
				Uint64("forwarded", stats.Forwarded).
				Uint64("dropped", stats.Dropped).
				Floats64("levels", application.Levels()).
				Msg("Waveform")
			log.Debug().Floats64("spectrum_db", application.Spectrum()).Msg("Spectrum")
		}
	}
}
