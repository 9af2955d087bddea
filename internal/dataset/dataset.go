// Package dataset reads and writes labeled landmark dumps: one CSV row per
// observation, 63 coordinates followed by the gesture label.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/gesture"
)

// ErrEmpty is returned when a dump holds no samples.
var ErrEmpty = errors.New("dataset has no samples")

// Sample is one labeled observation.
type Sample struct {
	Features features.Vector
	Label    gesture.Label
}

// Writer appends samples to a dump.
type Writer struct {
	f   *os.File
	csv *csv.Writer
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return &Writer{f: f, csv: csv.NewWriter(f)}, nil
}

// Write appends one sample and flushes it.
func (w *Writer) Write(s Sample) error {
	if err := s.Features.Validate(); err != nil {
		return err
	}
	if !s.Label.Known() {
		return fmt.Errorf("unknown gesture label %q", s.Label)
	}

	record := make([]string, 0, len(s.Features)+1)
	for _, x := range s.Features {
		record = append(record, strconv.FormatFloat(x, 'g', -1, 64))
	}
	record = append(record, string(s.Label))

	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Load reads every sample from the dump at path.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses samples from r. A leading header row is skipped. Values may be
// separated by ", " as well as ",".
func Read(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = features.Dimensions + 1

	var samples []Sample
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if line == 1 && isHeader(record) {
			continue
		}

		s, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return samples, nil
}

func isHeader(record []string) bool {
	_, err := strconv.ParseFloat(record[0], 64)
	return err != nil
}

func parseRecord(record []string) (Sample, error) {
	v := make(features.Vector, features.Dimensions)
	for i := 0; i < features.Dimensions; i++ {
		x, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return Sample{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		v[i] = x
	}

	label, ok := gesture.ParseLabel(record[features.Dimensions])
	if !ok {
		return Sample{}, fmt.Errorf("unknown gesture label %q", record[features.Dimensions])
	}

	return Sample{Features: v, Label: label}, nil
}
