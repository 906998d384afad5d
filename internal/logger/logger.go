package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvVar = "MEANREV_ENV"

type Options struct {
	Verbose bool
}

func New() *zap.SugaredLogger {
	return NewWithOptions(Options{})
}

func NewWithOptions(o Options) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	env := os.Getenv(EnvVar)
	if strings.EqualFold(env, "dev") {
		cfg := zap.NewDevelopmentConfig()
		if !o.Verbose {
			cfg.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = cfg.Build(opts...)
	} else {
		cfg := zap.NewProductionConfig()
		if o.Verbose {
			cfg.Level.SetLevel(zap.DebugLevel)
		}
		opts = append(opts, zap.Fields(zap.Field{
			Key:    EnvVar,
			Type:   zapcore.StringType,
			String: env,
		}))
		logger, err = cfg.Build(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar()
}

type contextKey struct{}

func NewContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

func FromContext(ctx context.Context) *zap.SugaredLogger {
	log, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger)
	if !ok {
		log = zap.S()
		log.Debug("no logger found in ctx - using global logger")
	}
	return log
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
