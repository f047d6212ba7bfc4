package ml

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// sidecarTemplate is the Python server started by the python backend. It
// unpickles the joblib artifact once and answers /health, /schema and
// /predict. Incoming rows are reindexed against the scaler's columns before
// they reach the model.
const sidecarTemplate = `#!/usr/bin/env python3
import json
import sys

# Classes referenced by the pickle live next to the artifact or in the
# server's working directory.
IMPORT_PATHS = [{{ range $i, $p := .ImportPaths }}{{ if $i }}, {{ end }}{{ printf "%q" $p }}{{ end }}]
for p in reversed(IMPORT_PATHS):
    if p not in sys.path:
        sys.path.insert(0, p)

from http.server import BaseHTTPRequestHandler, HTTPServer

try:
    import joblib
    import pandas as pd
except ImportError as e:
    print(json.dumps({"error": "missing dependency: %s" % e}), file=sys.stderr)
    sys.exit(1)

MODEL_PATH = {{ printf "%q" .ModelPath }}

try:
    MODEL = joblib.load(MODEL_PATH)
except Exception as e:
    print(json.dumps({"error": "load failed: %s" % e}), file=sys.stderr)
    sys.exit(1)

SCALER = getattr(MODEL, "scaler", None)
COLUMNS = [str(c) for c in getattr(SCALER, "feature_names_in_", [])]
if not COLUMNS:
    print(json.dumps({"error": "artifact scaler exposes no feature_names_in_"}), file=sys.stderr)
    sys.exit(2)

VERSION = str(getattr(MODEL, "version", "pickle"))
MEMBERS = [type(m).__name__ for m in getattr(MODEL, "models", [])]


class Handler(BaseHTTPRequestHandler):
    def _send(self, code, body):
        data = json.dumps(body).encode("utf-8")
        self.send_response(code)
        self.send_header("Content-Type", "application/json")
        self.send_header("Content-Length", str(len(data)))
        self.end_headers()
        self.wfile.write(data)

    def do_GET(self):
        if self.path == "/health":
            self._send(200, {"status": "ok"})
        elif self.path == "/schema":
            self._send(200, {"feature_names": COLUMNS, "version": VERSION, "members": MEMBERS})
        else:
            self._send(404, {"error": "not found"})

    def do_POST(self):
        if self.path != "/predict":
            self._send(404, {"error": "not found"})
            return
        try:
            length = int(self.headers.get("Content-Length", "0"))
            req = json.loads(self.rfile.read(length).decode("utf-8"))
            frame = pd.DataFrame([req["values"]], columns=req["columns"])
            frame = frame.reindex(columns=COLUMNS, fill_value=0)
            pred = MODEL.predict(frame)
            self._send(200, {"prediction": float(pred[0])})
        except Exception as e:
            self._send(400, {"error": str(e)})

    def log_message(self, format, *args):
        return


HTTPServer(({{ printf "%q" .Addr }}, {{ .Port }}), Handler).serve_forever()
`

type sidecarScriptData struct {
	ModelPath   string
	ImportPaths []string
	Addr        string
	Port        int
}

// sidecarImportPaths lists the directories the sidecar must be able to import
// from: the model's directory first, then the working directory when it
// differs.
func sidecarImportPaths(modelPath string) []string {
	paths := []string{filepath.Dir(modelPath)}
	if wd, err := os.Getwd(); err == nil && wd != paths[0] {
		paths = append(paths, wd)
	}
	return paths
}

// renderSidecarScript writes the rendered sidecar to a new temp file and
// returns its path.
func renderSidecarScript(data sidecarScriptData) (string, error) {
	t, err := template.New("sidecar").Parse(sidecarTemplate)
	if err != nil {
		return "", fmt.Errorf("parse sidecar template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render sidecar template: %w", err)
	}

	f, err := os.CreateTemp("", "arecayield-sidecar-*.py")
	if err != nil {
		return "", fmt.Errorf("create sidecar script: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write sidecar script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close sidecar script: %w", err)
	}

	return f.Name(), nil
}
