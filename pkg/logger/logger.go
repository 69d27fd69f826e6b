package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
)

// New creates a new logger instance
func New(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		logger.SetFormatter(&CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
				ForceColors:     true,
			},
		})
	}

	output, err := getOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to set output: %w", err)
	}
	logger.SetOutput(output)

	return logger, nil
}

// CustomTextFormatter is a custom text formatter for logrus
type CustomTextFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	levelColor := getColorByLevel(entry.Level)
	timestamp := entry.Time.Format(f.TimestampFormat)

	fields := ""
	if len(entry.Data) > 0 {
		fields = " |"
		for k, v := range entry.Data {
			fields += fmt.Sprintf(" %s=%v", k, v)
		}
	}

	logLine := fmt.Sprintf("%s%s %s%s%s %s%s\n",
		"\033[90m", timestamp, "\033[0m",
		levelColor, strings.ToUpper(entry.Level.String()), "\033[0m",
		entry.Message+fields,
	)

	return []byte(logLine), nil
}

// getColorByLevel returns ANSI color code for log level
func getColorByLevel(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel:
		return "\033[36m" // Cyan
	case logrus.InfoLevel:
		return "\033[32m" // Green
	case logrus.WarnLevel:
		return "\033[33m" // Yellow
	case logrus.ErrorLevel:
		return "\033[31m" // Red
	case logrus.FatalLevel, logrus.PanicLevel:
		return "\033[35m" // Magenta
	default:
		return "\033[0m" // Reset
	}
}

// getOutput returns the appropriate output writer
func getOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		return file, nil
	}
}

// WithComponent creates a logger with component field
func WithComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// Fields is a type alias for logrus.Fields
type Fields = logrus.Fields
