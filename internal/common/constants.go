package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvModelBackend   = "MODEL_BACKEND"
	EnvModelPath      = "MODEL_PATH"
	EnvPythonPath     = "PYTHON_PATH"
	EnvSidecarURL     = "SIDECAR_URL"
	EnvSidecarPort    = "SIDECAR_PORT"
	EnvSidecarStartup = "SIDECAR_STARTUP"
	EnvDriftThreshold = "DRIFT_THRESHOLD"
	EnvDriftWindow    = "DRIFT_WINDOW"
	EnvHTTPPort       = "HTTP_PORT"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvDataPath       = "DATA_PATH"
	EnvInfluxURL      = "INFLUX_URL"
	EnvInfluxToken    = "INFLUX_TOKEN"
	EnvInfluxOrg      = "INFLUX_ORG"
	EnvInfluxBucket   = "INFLUX_BUCKET"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Configuration defaults
const (
	DefaultModelBackend   = "native"
	DefaultModelPath      = "ensemble_model.json"
	DefaultSidecarPort    = 8501
	DefaultSidecarStartup = "30s"
	DefaultDriftThreshold = 4.0 // z-score
	DefaultDriftWindow    = 100
	DefaultHTTPPort       = 8080
	DefaultReadTimeout    = "10s"
	DefaultWriteTimeout   = "10s"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultHistoryLimit   = 20
	MaxHistoryLimit       = 1000
)

// Validation constants
const (
	MinPort           = 1024
	MaxPort           = 65535
	MinDriftWindow    = 1
	MaxDriftWindow    = 100000
	MaxDriftThreshold = 100.0
)

// Form bounds shown in the UI
const (
	MinSoilPH            = 4.0
	MaxSoilPH            = 9.0
	MinSoilOrganicCarbon = 0.0
	MaxSoilOrganicCarbon = 100.0
)

// Prediction output
const (
	YieldUnit         = "kg/palm"
	YieldResultFormat = "Predicted Crop Yield: %.2f kg/palm"
	HistoryDBFile     = "arecayield.db"
	InfluxMeasurement = "yield_prediction"
	RequestIDHeader   = "X-Request-ID"
)
