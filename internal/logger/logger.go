package logger

import (
	"net/http"

	"diaspora-map/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "diaspora-map"

type Logger struct {
	*zap.Logger
}

// New builds the root logger: JSON with ISO8601 times in production, coloured
// console output elsewhere. LOG_LEVEL overrides the environment's default level.
func New(cfg *config.Config) *Logger {
	var zapCfg zap.Config

	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"

	var badLevel error
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			badLevel = err
		} else {
			zapCfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	l = l.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment))
	if badLevel != nil {
		l.Warn("ignoring LOG_LEVEL", zap.String("value", cfg.LogLevel), zap.Error(badLevel))
	}

	return &Logger{l}
}

// Component returns a child logger named after a part of the service.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}

// ForRequest tags l with the chi request id and the route being served.
func ForRequest(l *zap.Logger, r *http.Request) *zap.Logger {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return l.With(fields...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
