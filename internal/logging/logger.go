// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serviceName tags every entry so api, worker, and scraper logs stay
// filterable once they land in a shared collector.
const serviceName = "mlcollect"

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	logger, err := newConfig(development).Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func newConfig(development bool) zap.Config {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.InitialFields = map[string]any{"service": serviceName}
	return cfg
}
