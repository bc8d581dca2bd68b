package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig     *AppConfig
	BrowserConfig *BrowserConfig
	SessionConfig *SessionConfig
	JobConfig     *JobConfig
}

type AppConfig struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	Debug          bool   `envconfig:"DEBUG" default:"false"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

type BrowserConfig struct {
	Headless bool `envconfig:"BROWSER_HEADLESS" default:"true"`
	// Args takes one flag or a comma-separated list.
	Args    []string `envconfig:"BROWSER_ARGS" default:"--mute-audio"`
	SlowMo  int      `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout int      `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	Install bool     `envconfig:"BROWSER_INSTALL" default:"false"`
	// SnapshotPath switches the driver to a saved copy of the page.
	SnapshotPath string `envconfig:"SNAPSHOT_PATH"`
}

type SessionConfig struct {
	TargetURL       string        `envconfig:"VOICECHANGER_URL" default:"https://voicechanger.io/"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"100ms"`
	PollMaxInterval time.Duration `envconfig:"POLL_MAX_INTERVAL" default:"1s"`
	UploadTimeout   time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"60s"`
	OutputTimeout   time.Duration `envconfig:"OUTPUT_TIMEOUT" default:"120s"`
}

type JobConfig struct {
	InputPath  string `envconfig:"INPUT_PATH" default:"sample.mp3"`
	OutputName string `envconfig:"OUTPUT_NAME"`
	// Effect selects an effect by title; empty picks one at random.
	Effect string `envconfig:"EFFECT"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}
