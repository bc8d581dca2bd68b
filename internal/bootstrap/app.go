package bootstrap

import (
	"time"
	"voicechanger/internal/bridge"
	"voicechanger/internal/config"
	"voicechanger/internal/console"
	"voicechanger/internal/discovery"
	"voicechanger/internal/locator"
	"voicechanger/internal/storage"
	"voicechanger/internal/usecase"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// NewApp wires the session stack; programs pass the fx.Invoke that runs their job.
func NewApp(opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			newDriver,
			asDriver,
			asLauncher,

			locator.Default,
			discovery.NewDiscoverer,
			bridge.NewBridge,
			storage.NewStorage,

			usecase.NewUsecase,

			console.NewRunner,
		),

		fx.Invoke(func(*sdktrace.TracerProvider) {}),
		fx.Options(opts...),

		fx.StartTimeout(2*time.Minute),
	)
}
