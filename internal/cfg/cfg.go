package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"arecayield/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelBackend   string
	ModelPath      string
	PythonPath     string
	SidecarURL     string
	SidecarPort    int
	SidecarStartup time.Duration
	DriftThreshold float64 // 0 disables drift monitoring
	DriftWindow    int
	HTTPPort       int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	DataPath       string
	Influx         InfluxSettings
	LogLevel       string
	LogFormat      string
}

type InfluxSettings struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether predictions should be exported to InfluxDB.
func (s InfluxSettings) Enabled() bool {
	return s.URL != ""
}

type ConfigFile struct {
	Model struct {
		Backend        string   `yaml:"backend"`
		Path           string   `yaml:"path"`
		Python         string   `yaml:"python"`
		SidecarURL     string   `yaml:"sidecarURL"`
		SidecarPort    int      `yaml:"sidecarPort"`
		SidecarStartup string   `yaml:"sidecarStartup"`
		DriftThreshold *float64 `yaml:"driftThreshold"`
		DriftWindow    int      `yaml:"driftWindow"`
	} `yaml:"model"`

	Server struct {
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"storage"`

	Influx InfluxSettings `yaml:"influx"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE
// or, without one, the environment. Environment variables always win.
func Load() (Settings, error) {
	loadDotEnv(".env")

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("failed to read env file")
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	driftThreshold := common.DefaultDriftThreshold
	if config.Model.DriftThreshold != nil {
		driftThreshold = *config.Model.DriftThreshold
	}

	settings := Settings{
		ModelBackend:   getEnvOrDefault(common.EnvModelBackend, orDefault(config.Model.Backend, common.DefaultModelBackend)),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		PythonPath:     getEnvOrDefault(common.EnvPythonPath, config.Model.Python),
		SidecarURL:     getEnvOrDefault(common.EnvSidecarURL, config.Model.SidecarURL),
		SidecarPort:    getIntFromEnvOrConfig(common.EnvSidecarPort, config.Model.SidecarPort, common.DefaultSidecarPort),
		SidecarStartup: getDurationFromEnvOrConfig(common.EnvSidecarStartup, config.Model.SidecarStartup, common.DefaultSidecarStartup),
		DriftThreshold: getFloatOrDefault(common.EnvDriftThreshold, driftThreshold),
		DriftWindow:    getIntFromEnvOrConfig(common.EnvDriftWindow, config.Model.DriftWindow, common.DefaultDriftWindow),
		HTTPPort:       getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.Port, common.DefaultHTTPPort),
		ReadTimeout:    getDurationFromEnvOrConfig(common.EnvReadTimeout, config.Server.ReadTimeout, common.DefaultReadTimeout),
		WriteTimeout:   getDurationFromEnvOrConfig(common.EnvWriteTimeout, config.Server.WriteTimeout, common.DefaultWriteTimeout),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		Influx: InfluxSettings{
			URL:    getEnvOrDefault(common.EnvInfluxURL, config.Influx.URL),
			Token:  getEnvOrDefault(common.EnvInfluxToken, config.Influx.Token),
			Org:    getEnvOrDefault(common.EnvInfluxOrg, config.Influx.Org),
			Bucket: getEnvOrDefault(common.EnvInfluxBucket, config.Influx.Bucket),
		},
		LogLevel:  getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogFormat: getEnvOrDefault(common.EnvLogFormat, orDefault(config.Log.Format, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelBackend:   getEnvOrDefault(common.EnvModelBackend, common.DefaultModelBackend),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		PythonPath:     os.Getenv(common.EnvPythonPath), // optional, auto-detected
		SidecarURL:     os.Getenv(common.EnvSidecarURL), // optional
		SidecarPort:    getIntOrDefault(common.EnvSidecarPort, common.DefaultSidecarPort),
		SidecarStartup: getDurationOrDefault(common.EnvSidecarStartup, mustDuration(common.DefaultSidecarStartup)),
		DriftThreshold: getFloatOrDefault(common.EnvDriftThreshold, common.DefaultDriftThreshold),
		DriftWindow:    getIntOrDefault(common.EnvDriftWindow, common.DefaultDriftWindow),
		HTTPPort:       getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, mustDuration(common.DefaultReadTimeout)),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, mustDuration(common.DefaultWriteTimeout)),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		Influx: InfluxSettings{
			URL:    os.Getenv(common.EnvInfluxURL),
			Token:  os.Getenv(common.EnvInfluxToken),
			Org:    os.Getenv(common.EnvInfluxOrg),
			Bucket: os.Getenv(common.EnvInfluxBucket),
		},
		LogLevel:  getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat: getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid default duration %q", s))
	}
	return d
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getDurationFromEnvOrConfig(key, configValue, defaultValue string) time.Duration {
	d := mustDuration(defaultValue)
	if configValue != "" {
		if parsed, err := time.ParseDuration(configValue); err == nil {
			d = parsed
		}
	}
	return getDurationOrDefault(key, d)
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	switch settings.ModelBackend {
	case "native", "python":
	default:
		return fmt.Errorf("model backend must be native or python, got %q", settings.ModelBackend)
	}

	if settings.ModelPath == "" && settings.SidecarURL == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.SidecarPort < common.MinPort || settings.SidecarPort > common.MaxPort {
		return fmt.Errorf("sidecar port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.SidecarPort)
	}
	if settings.ModelBackend == "python" && settings.SidecarURL == "" && settings.SidecarPort == settings.HTTPPort {
		return fmt.Errorf("sidecar port %d collides with the HTTP port", settings.SidecarPort)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 1m, got %v", settings.WriteTimeout)
	}
	if settings.SidecarStartup < time.Second || settings.SidecarStartup > 5*time.Minute {
		return fmt.Errorf("sidecar startup timeout must be between 1s and 5m, got %v", settings.SidecarStartup)
	}

	if settings.DriftThreshold < 0 || settings.DriftThreshold > common.MaxDriftThreshold {
		return fmt.Errorf("drift threshold must be between 0 and %.0f, got %f", common.MaxDriftThreshold, settings.DriftThreshold)
	}
	if settings.DriftWindow < common.MinDriftWindow || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between %d and %d, got %d", common.MinDriftWindow, common.MaxDriftWindow, settings.DriftWindow)
	}

	if settings.Influx.Enabled() {
		if settings.Influx.Org == "" || settings.Influx.Bucket == "" {
			return fmt.Errorf("influx org and bucket are required when INFLUX_URL is set")
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	switch strings.ToLower(settings.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
