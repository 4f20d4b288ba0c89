// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap loggers used by the monitor and the CLI.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared across components so log lines stay greppable.
const (
	FieldComponent = "component"
	FieldPath      = "path"
	FieldTarget    = "target"
	FieldKind      = "kind"
	FieldTier      = "tier"
	FieldScore     = "score"
	FieldReference = "reference"
	FieldStatus    = "status"
	FieldDest      = "destination"
	FieldCount     = "count"
)

// New returns a logger at the given level. JSON output uses the production
// encoder; otherwise a console encoder writes to stderr.
func New(level string, json bool) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if json {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		lvl,
	)
	return zap.New(core), nil
}

// ParseLevel accepts debug, info, warn and error (case-insensitive). An empty
// string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", level)
	}
}

// Component returns a child logger tagged with the component name. A nil
// parent yields a no-op logger so components can be built without logging.
func Component(parent *zap.Logger, name string) *zap.Logger {
	if parent == nil {
		return zap.NewNop()
	}
	return parent.With(zap.String(FieldComponent, name))
}
