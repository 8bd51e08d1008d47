package logger

import (
	"io"
	"os"

	"github.com/go-subtracker/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger. Production and staging log JSON, other
// environments log human-readable text. LOG_FORMAT overrides that choice.
// When LOG_FILE is set, output is teed into a size-rotated file.
func New(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("invalid log level %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if jsonFormat(cfg) {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	return log
}

func jsonFormat(cfg *config.Config) bool {
	switch cfg.LogFormat {
	case "json":
		return true
	case "text":
		return false
	}
	return cfg.AppEnv == "production" || cfg.AppEnv == "staging"
}
