package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Production uses JSON with ISO8601 timestamps,
// anything else the colored development encoder. When cloudWatch is non-nil,
// entries are tee'd to it as JSON.
func New(env string, cloudWatch io.Writer) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cloudWatch == nil {
		return config.Build()
	}

	level := zap.NewAtomicLevelAt(config.Level.Level())
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stdout), level)

	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cwCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(cloudWatch), level)

	return zap.New(zapcore.NewTee(consoleCore, cwCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// Initialize builds the logger and installs it as the zap global.
// The returned function restores the previous global and flushes.
func Initialize(env string, cloudWatch io.Writer) (*zap.Logger, func(), error) {
	log, err := New(env, cloudWatch)
	if err != nil {
		return nil, nil, err
	}
	restore := zap.ReplaceGlobals(log)
	return log, func() {
		_ = log.Sync()
		restore()
	}, nil
}
