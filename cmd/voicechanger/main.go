package main

import (
	"voicechanger/internal/bootstrap"

	"go.uber.org/fx"
)

func main() {
	bootstrap.NewApp(fx.Invoke(bootstrap.RunJob)).Run()
}
