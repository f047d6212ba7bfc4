package cfg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arecayield/internal/common"
	"arecayield/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ModelConfig returns the gateway configuration for these settings.
func (s *Settings) ModelConfig() ml.Config {
	return ml.Config{
		Backend:        s.ModelBackend,
		ModelPath:      s.ModelPath,
		PythonPath:     s.PythonPath,
		SidecarURL:     s.SidecarURL,
		SidecarPort:    s.SidecarPort,
		StartupTimeout: s.SidecarStartup,
		RequestTimeout: s.WriteTimeout / 2,
		Drift: ml.DriftConfig{
			Threshold:  s.DriftThreshold,
			WindowSize: s.DriftWindow,
		},
	}
}

// Addr is the listen address of the HTTP server.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}

// HistoryPath is the bbolt file holding prediction history, or "" when
// history is disabled.
func (s *Settings) HistoryPath() string {
	if s.DataPath == "" {
		return ""
	}
	return filepath.Join(s.DataPath, common.HistoryDBFile)
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(level, format string) error {
	return setupLogging(os.Stderr, level, format)
}

func setupLogging(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(format) {
	case "console":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	return nil
}
