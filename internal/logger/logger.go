package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pipewright/fdkit/internal/fd"
)

// New creates a new zap logger
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	return cfg.Build()
}

// Must creates a logger or panics
func Must(development bool) *zap.Logger {
	log, err := New(development)
	if err != nil {
		panic(err)
	}
	return log
}

// RouteDescriptorDiagnostics sends close failures from the descriptor kernel
// to log instead of raw stderr. Extra sinks, such as a metrics counter, run
// after the log line. Pass a nil logger to restore the kernel's default.
func RouteDescriptorDiagnostics(log *zap.Logger, sinks ...func(error)) {
	if log == nil {
		fd.SetCloseDiagnostic(nil)
		return
	}
	fd.SetCloseDiagnostic(func(err error) {
		log.Warn("descriptor close failed", zap.Error(err))
		for _, sink := range sinks {
			sink(err)
		}
	})
}
