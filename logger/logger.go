package logger

import (
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/lumberjack.v3"
)

var once sync.Once
var appLogger *zap.Logger

// Get returns the process-wide logger. Console output is always on; when
// LOG_FILE is set a rotating JSON file core is added.
func Get() *zap.Logger {
	once.Do(initLogger)
	return appLogger
}

// Named is a shorthand for a component-scoped sugared logger.
func Named(name string) *zap.SugaredLogger {
	return Get().Named(name).Sugar()
}

func initLogger() {
	level := zap.InfoLevel
	if levelEnv := os.Getenv("LOG_LEVEL"); levelEnv != "" {
		if parsed, err := zapcore.ParseLevel(levelEnv); err == nil {
			level = parsed
		}
	}
	logLevel := zap.NewAtomicLevelAt(level)

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), logLevel),
	}

	if filename := os.Getenv("LOG_FILE"); filename != "" {
		fileHandler, err := lumberjack.New(
			lumberjack.WithFileName(filename),
			lumberjack.WithMaxBytes(5*1024*1024),
			lumberjack.WithMaxBackups(10),
			lumberjack.WithMaxDays(14),
			lumberjack.WithCompress(),
		)
		if err != nil {
			log.Printf("failed to open log file %s, console only: %v", filename, err)
		} else {
			fileCfg := zap.NewProductionEncoderConfig()
			fileCfg.TimeKey = "timestamp"
			fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileHandler), logLevel))
		}
	}

	appLogger = zap.New(zapcore.NewTee(cores...))
}
