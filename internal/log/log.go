// Package log carries a logrus entry through context.Context.
package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	rootLogger = logrus.NewEntry(logrus.StandardLogger())

	// L accesses the current logger from the context
	L = loggerFromContext

	initAtLeastOnce atomic.Bool
)

type ctxLogKey struct{}

// Config controls level, format and destination of log output.
type Config struct {
	Level      string     `yaml:"level"`
	Format     string     `yaml:"format"` // simple, detailed, json
	Output     string     `yaml:"output"` // stderr, stdout, file
	TimeFormat string     `yaml:"timeFormat"`
	UTC        bool       `yaml:"utc"`
	NoColor    bool       `yaml:"noColor"`
	File       FileConfig `yaml:"file"`
}

// FileConfig configures rotating file output.
type FileConfig struct {
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the defaults applied to empty fields.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "simple",
		Output:     "stderr",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		File: FileConfig{
			Filename:   "votectl.log",
			MaxSizeMB:  100,
			MaxBackups: 2,
			MaxAgeDays: 1,
		},
	}
}

// InitConfig applies conf to the process-wide logger.
func InitConfig(conf Config) {
	initAtLeastOnce.Store(true)
	def := DefaultConfig()

	SetLevel(orDefault(conf.Level, def.Level))

	var out io.Writer
	switch orDefault(conf.Output, def.Output) {
	case "file":
		filename := orDefault(conf.File.Filename, def.File.Filename)
		rootLogger.Infof("Logs diverted to %s", filename)
		out = &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    intOrDefault(conf.File.MaxSizeMB, def.File.MaxSizeMB),
			MaxBackups: intOrDefault(conf.File.MaxBackups, def.File.MaxBackups),
			MaxAge:     intOrDefault(conf.File.MaxAgeDays, def.File.MaxAgeDays),
			Compress:   conf.File.Compress,
		}
	case "stdout":
		out = os.Stdout
	default:
		out = os.Stderr
	}
	logrus.SetOutput(out)

	setFormatting(orDefault(conf.Format, def.Format), orDefault(conf.TimeFormat, def.TimeFormat), conf.NoColor, conf.UTC)
}

// EnsureInit makes sure a default configuration is in place.
func EnsureInit() {
	if !initAtLeastOnce.Load() {
		InitConfig(Config{})
	}
}

// WithLogger adds the specified logger to the context
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	EnsureInit()
	return context.WithValue(ctx, ctxLogKey{}, logger)
}

// WithLogField adds the specified field to the logger in the context
func WithLogField(ctx context.Context, key, value string) context.Context {
	EnsureInit()
	if len(value) > 61 {
		value = value[0:61] + "..."
	}
	return WithLogger(ctx, loggerFromContext(ctx).WithField(key, value))
}

func loggerFromContext(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(ctxLogKey{})
	if logger == nil {
		return rootLogger
	}
	return logger.(*logrus.Entry)
}

// IsDebugEnabled reports whether debug output is on.
func IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// SetLevel accepts error, warn, info, debug or trace. Anything else is info.
func SetLevel(level string) {
	var l logrus.Level
	switch strings.ToLower(level) {
	case "error":
		l = logrus.ErrorLevel
	case "warn", "warning":
		l = logrus.WarnLevel
	case "debug":
		l = logrus.DebugLevel
	case "trace":
		l = logrus.TraceLevel
	default:
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)
}

type utcFormat struct {
	f logrus.Formatter
}

func (utc *utcFormat) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return utc.f.Format(e)
}

func setFormatting(format, timeFormat string, noColor, utc bool) {
	var formatter logrus.Formatter
	switch format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: timeFormat}
	case "detailed":
		formatter = &logrus.TextFormatter{
			DisableColors:   noColor,
			TimestampFormat: timeFormat,
			FullTimestamp:   true,
		}
		logrus.SetReportCaller(true)
	default:
		formatter = &prefixed.TextFormatter{
			DisableColors:   noColor,
			TimestampFormat: timeFormat,
			ForceFormatting: true,
			FullTimestamp:   true,
		}
	}
	if utc {
		formatter = &utcFormat{f: formatter}
	}
	logrus.SetFormatter(formatter)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
