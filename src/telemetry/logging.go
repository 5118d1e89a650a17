// Package telemetry sets up logging and the OpenTelemetry pipeline for the
// bridge process.
package telemetry

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
)

// SetupLogging sets the logrus level and, when tracing is on, forwards log
// entries to the active span as events.
func SetupLogging(level string, otelEnabled bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("SetupLogging: %w", err)
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if otelEnabled {
		log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
			log.InfoLevel,
		)))
	}

	return nil
}
