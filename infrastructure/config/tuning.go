package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"labsos-backend/domain/search"
)

// LoadTuning reads a tuning file. Keys missing from the file keep their
// built-in values.
func LoadTuning(path string) (search.Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return search.Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes YAML over the defaults and validates the result.
// Unknown keys are rejected so typos do not silently fall back.
func ParseTuning(data []byte) (search.Tuning, error) {
	tuning := search.DefaultTuning()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tuning); err != nil && !errors.Is(err, io.EOF) {
		return search.Tuning{}, fmt.Errorf("failed to parse tuning: %w", err)
	}

	if err := tuning.Validate(); err != nil {
		return search.Tuning{}, err
	}
	return tuning, nil
}
