// Package logging constructs the process-wide zap logger.
// Components receive a *zap.Logger explicitly; there is no global logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates a logger. Development mode uses console encoding with
// human-readable timestamps; production mode emits JSON.
func New(development bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}
