package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"
	"voicechanger/internal/console"
	"voicechanger/internal/ports"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RunJob runs the configured job once the driver is up and shuts the app down with its outcome.
func RunJob(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *console.Runner, driver ports.Launcher, logger *zap.Logger) {
	runOnce(lc, shutdowner, driver, logger, "apply_voice_effect", func(ctx context.Context) error {
		_, err := runner.Run(ctx, runner.JobFromConfig())
		return err
	}, runner)
}

// ListEffects prints the discovered catalog and exits.
func ListEffects(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *console.Runner, driver ports.Launcher, logger *zap.Logger) {
	runOnce(lc, shutdowner, driver, logger, "list_voice_effects", runner.ListEffects, runner)
}

func runOnce(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	driver ports.Launcher,
	logger *zap.Logger,
	name string,
	job func(ctx context.Context) error,
	runner *console.Runner,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("Launching driver...")

			if err := driver.Launch(startCtx); err != nil {
				logger.Error("Failed to launch driver", zap.Error(err))
				cancel()

				return err
			}

			go func() {
				defer close(done)

				start := time.Now()
				err := job(ctx)
				end := time.Now()

				runner.PrintTiming(name, start, end)

				code := 0
				if err != nil {
					logger.Error("Job failed", zap.Error(err))
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					code = 1
				}

				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error("Failed to request shutdown", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
			case <-stopCtx.Done():
				logger.Warn("Job did not stop in time")
			}

			if err := driver.Close(stopCtx); err != nil {
				logger.Error("Failed to close driver", zap.Error(err))
			}

			return nil
		},
	})
}
