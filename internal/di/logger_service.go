package di

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/config"
)

// LoggerService wraps the zerolog logger for DI.
type LoggerService struct {
	Logger  *zerolog.Logger
	closers []io.Closer
}

// NewLogger creates the zerolog logger from configuration.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	cfg := cfgSvc.Get()

	svc := &LoggerService{}
	logger, err := svc.build(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	svc.Logger = &logger
	return svc, nil
}

func (s *LoggerService) build(cfg config.LoggingConfig) (zerolog.Logger, error) {
	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		s.closers = append(s.closers, f)
		out = f
	}

	console := cfg.Format == "console" || cfg.Format == "text" || cfg.Format == "pretty"
	if console {
		colored := cfg.Pretty
		if f, ok := out.(*os.File); ok && !colored {
			colored = isatty.IsTerminal(f.Fd())
		}
		out = zerolog.ConsoleWriter{Out: out, NoColor: !colored}
	}

	logger := zerolog.New(out).Level(cfg.ParseLevel()).With().Timestamp().Logger()
	return logger, nil
}

// Shutdown implements do.Shutdowner, closing any log file the logger
// opened.
func (s *LoggerService) Shutdown() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
