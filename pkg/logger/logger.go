package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.SugaredLogger]

func init() {
	global.Store(zap.NewNop().Sugar())
}

// Init installs the process logger. Production environments get JSON output
// at info level; anything else gets the console encoder at debug level.
func Init(env string) error {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	global.Store(l.Sugar())
	return nil
}

// Set replaces the process logger, mostly for tests.
func Set(l *zap.Logger) {
	global.Store(l.WithOptions(zap.AddCallerSkip(1)).Sugar())
}

func Sync() {
	_ = global.Load().Sync()
}

func Debug(msg string, keysAndValues ...any) {
	global.Load().Debugw(msg, sanitize(keysAndValues)...)
}

func Info(msg string, keysAndValues ...any) {
	global.Load().Infow(msg, sanitize(keysAndValues)...)
}

func Warn(msg string, keysAndValues ...any) {
	global.Load().Warnw(msg, sanitize(keysAndValues)...)
}

func Error(msg string, keysAndValues ...any) {
	global.Load().Errorw(msg, sanitize(keysAndValues)...)
}

func Fatal(msg string, keysAndValues ...any) {
	global.Load().Fatalw(msg, sanitize(keysAndValues)...)
}

func sanitize(kv []any) []any {
	if len(kv) < 2 {
		return kv
	}
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if ok && redacted(strings.ToLower(key)) {
			out[i+1] = "[REDACTED]"
		}
	}
	return out
}

func redacted(key string) bool {
	return strings.Contains(key, "token") ||
		strings.Contains(key, "authorization") ||
		strings.Contains(key, "secret") ||
		strings.Contains(key, "password")
}
