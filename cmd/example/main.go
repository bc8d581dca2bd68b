// Command example applies a random effect to sample.mp3 and saves the result as TEST.mp3.
package main

import (
	"voicechanger/internal/bootstrap"
	"voicechanger/internal/config"

	"go.uber.org/fx"
)

func main() {
	bootstrap.NewApp(
		fx.Decorate(func(cfg *config.Config) *config.Config {
			cfg.JobConfig.OutputName = "TEST"
			return cfg
		}),
		fx.Invoke(bootstrap.RunJob),
	).Run()
}
