// Command effects prints the effects the target page currently offers.
package main

import (
	"voicechanger/internal/bootstrap"

	"go.uber.org/fx"
)

func main() {
	bootstrap.NewApp(fx.Invoke(bootstrap.ListEffects)).Run()
}
