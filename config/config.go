package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DEVELOPMENT = "development"

type Configuration struct {
	Env                     string `envconfig:"ENV" default:"development"`
	DatabaseURL             string `envconfig:"DATABASE_URL"`
	NumUserRoutines         int    `envconfig:"NUM_USER_ROUTINES" default:"4"`
	AttributionLookbackDays int    `envconfig:"ATTRIBUTION_LOOKBACK_DAYS" default:"7"`
	ConversionDedupePolicy  string `envconfig:"CONVERSION_DEDUPE_POLICY" default:"max"`
}

var configuration *Configuration = nil

// Init loads configuration from the environment and sets up logging.
// Must be called once before GetConfig.
func Init() error {
	var conf Configuration
	if err := envconfig.Process("", &conf); err != nil {
		return errors.Wrap(err, "failed to process env configuration")
	}

	if conf.NumUserRoutines < 1 {
		conf.NumUserRoutines = 1
	}

	configuration = &conf
	initLogging()
	return nil
}

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.DebugLevel)
	}
}

func GetConfig() *Configuration {
	if configuration == nil {
		log.Fatal("Configuration not initialized. Call config.Init.")
	}
	return configuration
}

func IsDevelopment() bool {
	return configuration != nil && configuration.Env == DEVELOPMENT
}
