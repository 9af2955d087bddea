// Package model loads externally trained gesture classification models.
package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
)

// ErrUnsupportedFormat is returned for artifacts with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Config describes the model artifact to load.
type Config struct {
	// Path to a .onnx, .csv or .json artifact.
	Path string
	// Labels gives the class order of ONNX output scores.
	// Empty means gesture.Labels().
	Labels []gesture.Label
	// ONNXLibrary is the ONNX Runtime shared library. Empty uses the
	// runtime's default search.
	ONNXLibrary string
}

// Load opens the artifact named by cfg.Path. The returned model may hold
// native resources; close it with Close when done.
func Load(cfg Config) (gesture.Model, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", cfg.Path, err)
	}

	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".onnx":
		labels := cfg.Labels
		if len(labels) == 0 {
			labels = gesture.Labels()
		}
		return LoadONNX(cfg.Path, labels, cfg.ONNXLibrary)
	case ".csv":
		return LoadDataset(cfg.Path)
	case ".json":
		return LoadPrototypes(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Path)
	}
}

// Close releases m if it holds resources.
func Close(m gesture.Model) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
