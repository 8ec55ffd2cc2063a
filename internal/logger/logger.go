package logger

import (
	"todo-chat/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(appConfig *config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(appConfig.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// production mode
	if level >= zapcore.WarnLevel {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	// development mode, more detailed logging
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
