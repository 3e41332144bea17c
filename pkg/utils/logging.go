package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
)

// LogConfig selects the level, format and destination of a logger.
type LogConfig struct {
	Level    string `env:"LOG_LEVEL"`
	Format   string `env:"LOG_FORMAT"`
	FilePath string `env:"LOG_FILE"`
	// Output is used when FilePath is empty. Defaults to os.Stdout.
	Output io.Writer
}

// InterceptorLogger returns a pre-configured grpc.UnaryServerInterceptor using slog for logging.
func InterceptorLogger(l *slog.Logger) grpc.UnaryServerInterceptor {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithDisableLoggingFields(
			logging.ComponentFieldKey,
			logging.MethodTypeFieldKey,
			logging.SystemTag[0],
			logging.SystemTag[1],
			logging.ServiceFieldKey,
		),
	}
	adaptedLogger := logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
	return logging.UnaryServerInterceptor(adaptedLogger, opts...)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger builds a slog logger from cfg.
func SetupLogger(cfg LogConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var writer io.Writer = os.Stdout
	if cfg.Output != nil {
		writer = cfg.Output
	}
	if cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file: %v", err))
		}
		writer = file
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "dev":
		handler = devslog.NewHandler(writer, &devslog.Options{
			HandlerOptions:    opts,
			MaxSlicePrintSize: 5,
			SortKeys:          true,
			StringerFormatter: true,
		})
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
