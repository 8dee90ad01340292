package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeNowFunc lets tests substitute the clock used when stamping log records.
var TimeNowFunc = time.Now

// TimeFormat is the time format used when a textual timestamp is needed
// outside of zap's own encoder (e.g. in the download-ticket audit trail).
var TimeFormat = time.RFC3339

// NewLogger builds a zap.Logger that writes to the rotating file described by
// config.Logger (lumberjack) and, unless disabled, to stdout at the same time.
func NewLogger(config *Config) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	encoder, level, err := constructEncoderAndLevel(config)
	if err != nil {
		return nil, fmt.Errorf("constructing log encoder and level: %w", err)
	}

	fileCore := zapcore.NewCore(encoder, zapcore.AddSync(&config.Logger), level)

	core := fileCore
	if !config.DisableConsoleOutput {
		console := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
		core = zapcore.NewTee(fileCore, console)
	}

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func constructEncoderAndLevel(config *Config) (zapcore.Encoder, zapcore.Level, error) {
	zapLevel, err := config.toZapCoreLevel()
	if err != nil {
		return nil, zapLevel, err
	}

	encoderConfig := getZapEncoderConfig(config)
	if config.Debug {
		return zapcore.NewConsoleEncoder(encoderConfig), zapLevel, nil
	}

	return zapcore.NewJSONEncoder(encoderConfig), zapLevel, nil
}

func getZapEncoderConfig(config *Config) zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	if config.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	if config.EncodeTimeAsRFC3339Nano {
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}

	return encoderConfig
}

// NewTestLogger returns an Interface suitable for use in unit tests: it logs
// at debug level to stderr with no file rotation.
func NewTestLogger() Interface {
	logger, _ := zap.NewDevelopment()
	return ForZap(logger)
}
