package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	once   sync.Once
)

// Init builds the process-wide logger. Console encoding with ISO8601
// timestamps; debug level when requested.
func Init(debug bool) *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		global = l.Sugar()
	})
	return global
}

// L returns the process logger, initializing a default one if Init has not
// run yet (tests, tools).
func L() *zap.SugaredLogger {
	if global == nil {
		return Init(false)
	}
	return global
}
