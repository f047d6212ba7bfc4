package ml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Sidecar serves predictions from the original pickled artifact through a
// Python HTTP process. When Config.SidecarURL is set it talks to an already
// running sidecar instead of spawning one.
type Sidecar struct {
	cfg     Config
	url     string
	client  *resty.Client
	columns []string
	info    ModelInfo

	mu     sync.Mutex
	cmd    *exec.Cmd
	script string
	exited chan struct{}
}

type sidecarSchema struct {
	FeatureNames []string `json:"feature_names"`
	Version      string   `json:"version"`
	Members      []string `json:"members"`
}

type sidecarPredictRequest struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

type sidecarPredictResponse struct {
	Prediction *float64 `json:"prediction"`
	Error      string   `json:"error,omitempty"`
}

// NewSidecar starts (or connects to) the sidecar and blocks until it
// answers /health and has reported its schema.
func NewSidecar(ctx context.Context, cfg Config) (*Sidecar, error) {
	if cfg.SidecarPort == 0 {
		cfg.SidecarPort = 8501
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	s := &Sidecar{cfg: cfg, url: strings.TrimRight(cfg.SidecarURL, "/")}

	if s.url == "" {
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, cfg.ModelPath)
			}
			return nil, fmt.Errorf("stat model artifact: %w", err)
		}
		s.url = fmt.Sprintf("http://127.0.0.1:%d", cfg.SidecarPort)
		if err := s.spawn(); err != nil {
			return nil, err
		}
	}

	s.client = resty.New().
		SetBaseURL(s.url).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json")

	if err := s.waitReady(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.loadSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Info().
		Str("sidecar_url", s.url).
		Str("model_path", cfg.ModelPath).
		Int("features", len(s.columns)).
		Msg("python sidecar ready")

	return s, nil
}

func (s *Sidecar) spawn() error {
	python := s.cfg.PythonPath
	if python == "" {
		var err error
		python, err = findPython()
		if err != nil {
			return err
		}
	}

	modelPath, err := filepath.Abs(s.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("resolve model path: %w", err)
	}

	script, err := renderSidecarScript(sidecarScriptData{
		ModelPath:   modelPath,
		ImportPaths: sidecarImportPaths(modelPath),
		Addr:        "127.0.0.1",
		Port:        s.cfg.SidecarPort,
	})
	if err != nil {
		return err
	}

	cmd := exec.Command(python, script)
	cmd.Dir = filepath.Dir(modelPath)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		os.Remove(script)
		return fmt.Errorf("start python sidecar: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.script = script
	s.exited = make(chan struct{})
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		if err != nil {
			log.Warn().Err(err).Str("script", script).Msg("python sidecar exited")
		}
		close(s.exited)
	}()

	log.Info().Str("python_path", python).Int("port", s.cfg.SidecarPort).Msg("python sidecar started")
	return nil
}

// waitReady polls /health with exponential backoff until the sidecar answers
// or the startup timeout elapses. A spawned sidecar that exits stops the wait.
func (s *Sidecar) waitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = s.cfg.StartupTimeout

	op := func() error {
		if s.hasExited() {
			return backoff.Permanent(errors.New("python sidecar exited during startup"))
		}
		resp, err := s.client.R().SetContext(ctx).Get("/health")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("sidecar health status %d", resp.StatusCode())
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("%w: sidecar at %s not ready: %v", ErrArtifactInvalid, s.url, err)
	}
	return nil
}

func (s *Sidecar) loadSchema(ctx context.Context) error {
	var schema sidecarSchema
	resp, err := s.client.R().SetContext(ctx).SetResult(&schema).Get("/schema")
	if err != nil {
		return fmt.Errorf("fetch sidecar schema: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch sidecar schema: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(schema.FeatureNames) == 0 {
		return ErrSchemaEmpty
	}

	s.columns = schema.FeatureNames
	s.info = ModelInfo{
		Backend:  BackendPython,
		Path:     s.cfg.ModelPath,
		Version:  schema.Version,
		Members:  schema.Members,
		Features: len(schema.FeatureNames),
	}
	if st, err := os.Stat(s.cfg.ModelPath); err == nil {
		s.info.ModTime = st.ModTime()
	}
	return nil
}

func (s *Sidecar) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Sidecar) Predict(ctx context.Context, values []float64) (float64, error) {
	if len(values) != len(s.columns) {
		return 0, fmt.Errorf("expected %d features, got %d", len(s.columns), len(values))
	}

	var out sidecarPredictResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sidecarPredictRequest{Columns: s.columns, Values: values}).
		SetResult(&out).
		SetError(&out).
		Post("/predict")
	if err != nil {
		return 0, fmt.Errorf("sidecar request: %w", err)
	}
	if resp.IsError() || out.Error != "" {
		return 0, fmt.Errorf("sidecar prediction failed: status %d: %s", resp.StatusCode(), out.Error)
	}
	if out.Prediction == nil {
		return 0, errors.New("sidecar response has no prediction")
	}
	return *out.Prediction, nil
}

func (s *Sidecar) Info() ModelInfo {
	info := s.info
	info.Members = append([]string(nil), s.info.Members...)
	return info
}

// Close stops a spawned sidecar and removes its script.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	var err error
	if !s.hasExitedLocked() {
		if kerr := s.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("kill python sidecar: %w", kerr)
		}
		<-s.exited
	}
	os.Remove(s.script)
	s.cmd = nil
	return err
}

func (s *Sidecar) hasExited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasExitedLocked()
}

func (s *Sidecar) hasExitedLocked() bool {
	if s.exited == nil {
		return false
	}
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// findPython returns a Python 3 interpreter that can import joblib and
// pandas, preferring an active or project-local virtualenv.
func findPython() (string, error) {
	var candidates []string
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates,
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		)
	}
	candidates = append(candidates,
		filepath.Join("venv", "bin", "python3"),
		filepath.Join(".venv", "bin", "python3"),
	)
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, p)
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cmd := exec.Command(p, "-c", "import sys, joblib, pandas; print('Python', sys.version)")
		if out, err := cmd.Output(); err == nil && strings.Contains(string(out), "Python 3") {
			return p, nil
		}
	}

	return "", errors.New("no Python 3 interpreter with joblib and pandas found; set PYTHON_PATH")
}
