package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arecayield/internal/features"
	"arecayield/internal/web"

	"gopkg.in/yaml.v3"
)

// loadObservation reads an observation from a JSON or YAML file and applies
// the same bounds as the web form.
func loadObservation(path string) (features.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return features.Observation{}, fmt.Errorf("read observation: %w", err)
	}

	var obs features.Observation
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&obs); err != nil {
			return features.Observation{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&obs); err != nil {
			return features.Observation{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if errs := web.ValidateObservation(obs); len(errs) > 0 {
		return features.Observation{}, errs
	}
	return obs, nil
}
