package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with additional functionality
type Logger struct {
	*zap.Logger
}

// Config contains logger configuration
type Config struct {
	Level  string
	Format string // json or console
	File   *FileConfig
}

// FileConfig contains file logging configuration
type FileConfig struct {
	Enabled bool
	Path    string
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	// Parse log level
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	// Create encoder config
	var encoderConfig zapcore.EncoderConfig
	if config.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// Create encoder
	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// Diagnostics go to stderr so CLI output on stdout stays clean
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	// File output (if enabled)
	if config.File != nil && config.File.Enabled {
		if err := os.MkdirAll(filepath.Dir(config.File.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		fileEncoderConfig := zap.NewProductionEncoderConfig()
		fileEncoderConfig.TimeKey = "timestamp"
		fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig),
			zapcore.AddSync(file),
			level,
		))
	}

	// Combine cores
	core := zapcore.NewTee(cores...)
	// Create logger
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{Logger: logger}, nil
}

// NewNop returns a logger that discards everything. Used by tests and by
// library callers that don't care about engine diagnostics.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithRequestID adds a request ID to the logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID))}
}

// WithComponent adds a component name to the logger context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

// LogDetectionCounts logs per-rule counts for a masking pass. Only rule keys
// and counts are logged, never the matched text.
func (l *Logger) LogDetectionCounts(msg string, counts map[string]int) {
	fields := make([]zap.Field, 0, len(counts)+1)
	total := 0
	for key, n := range counts {
		fields = append(fields, zap.Int("rule."+key, n))
		total += n
	}
	fields = append(fields, zap.Int("total_detections", total))
	l.Info(msg, fields...)
}
