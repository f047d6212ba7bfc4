package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ModelBackend:   "native",
		ModelPath:      "ensemble_model.json",
		SidecarPort:    8501,
		SidecarStartup: 30 * time.Second,
		DriftThreshold: 4,
		DriftWindow:    100,
		HTTPPort:       8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"unknown backend", func(s *Settings) { s.ModelBackend = "tensorflow" }, "model backend"},
		{"empty model path", func(s *Settings) { s.ModelPath = "" }, "model path"},
		{"HTTP port too low", func(s *Settings) { s.HTTPPort = 80 }, "HTTP port"},
		{"HTTP port too high", func(s *Settings) { s.HTTPPort = 70000 }, "HTTP port"},
		{"sidecar port too low", func(s *Settings) { s.SidecarPort = 0 }, "sidecar port"},
		{"sidecar port collides", func(s *Settings) {
			s.ModelBackend = "python"
			s.SidecarPort = s.HTTPPort
		}, "collides"},
		{"read timeout too short", func(s *Settings) { s.ReadTimeout = 500 * time.Millisecond }, "read timeout"},
		{"write timeout too long", func(s *Settings) { s.WriteTimeout = 2 * time.Minute }, "write timeout"},
		{"sidecar startup too long", func(s *Settings) { s.SidecarStartup = 10 * time.Minute }, "sidecar startup"},
		{"negative drift threshold", func(s *Settings) { s.DriftThreshold = -1 }, "drift threshold"},
		{"drift window zero", func(s *Settings) { s.DriftWindow = 0 }, "drift window"},
		{"influx without org", func(s *Settings) {
			s.Influx = InfluxSettings{URL: "http://localhost:8086", Bucket: "yield"}
		}, "influx"},
		{"bad log level", func(s *Settings) { s.LogLevel = "chatty" }, "log level"},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }, "log format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			tc.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatalf("Expected error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("Expected error mentioning %q, got: %v", tc.wantMsg, err)
			}
		})
	}
}

func TestValidateSettings_EdgeValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"minimum port", func(s *Settings) { s.HTTPPort = 1024 }},
		{"maximum port", func(s *Settings) { s.HTTPPort = 65535 }},
		{"one second timeouts", func(s *Settings) {
			s.ReadTimeout = time.Second
			s.WriteTimeout = time.Second
		}},
		{"one minute timeouts", func(s *Settings) {
			s.ReadTimeout = time.Minute
			s.WriteTimeout = time.Minute
		}},
		{"drift disabled", func(s *Settings) { s.DriftThreshold = 0 }},
		{"remote sidecar without model path", func(s *Settings) {
			s.ModelBackend = "python"
			s.ModelPath = ""
			s.SidecarURL = "http://sidecar:8501"
		}},
		{"remote sidecar may share port number", func(s *Settings) {
			s.ModelBackend = "python"
			s.SidecarURL = "http://sidecar:8080"
			s.SidecarPort = 8080
		}},
		{"uppercase log settings", func(s *Settings) {
			s.LogLevel = "DEBUG"
			s.LogFormat = "Console"
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			tc.mutate(settings)

			if err := validateSettings(settings); err != nil {
				t.Errorf("Expected %s to pass, got: %v", tc.name, err)
			}
		})
	}
}
