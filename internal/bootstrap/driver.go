package bootstrap

import (
	"voicechanger/internal/browser"
	"voicechanger/internal/browser/snapshot"
	"voicechanger/internal/config"
	"voicechanger/internal/ports"

	"go.uber.org/zap"
)

// newDriver picks the saved-page driver when SNAPSHOT_PATH is set and a live browser otherwise.
func newDriver(config *config.Config, logger *zap.Logger) ports.BrowserDriver {
	if path := config.BrowserConfig.SnapshotPath; path != "" {
		return snapshot.New(logger, path)
	}

	return browser.NewManager(browser.Params{
		Config: config,
		Logger: logger,
	})
}

func asDriver(d ports.BrowserDriver) ports.Driver {
	return d
}

func asLauncher(d ports.BrowserDriver) ports.Launcher {
	return d
}
