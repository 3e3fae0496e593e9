package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/petroleum-report/models"
)

// JSONWriter writes all tables as one JSON document keyed by table name.
type JSONWriter struct {
	path string
	mu   sync.Mutex
}

// NewJSONWriter prepares the parent directory of path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("json output needs a file")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSONWriter{path: path}, nil
}

// Write replaces the file with the encoded tables. Missing cells are null.
func (jw *JSONWriter) Write(tables []*models.Table) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	f, err := os.Create(jw.path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(documents(tables)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return f.Close()
}

// Close is a no-op.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateFile("json", jw.path)
}

// YAMLWriter writes the same document shape as JSONWriter in YAML.
type YAMLWriter struct {
	path string
	mu   sync.Mutex
}

// NewYAMLWriter prepares the parent directory of path.
func NewYAMLWriter(path string) (*YAMLWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("yaml output needs a file")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &YAMLWriter{path: path}, nil
}

func (yw *YAMLWriter) Write(tables []*models.Table) error {
	yw.mu.Lock()
	defer yw.mu.Unlock()

	f, err := os.Create(yw.path)
	if err != nil {
		return fmt.Errorf("create yaml file: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(documents(tables)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("flush yaml encoder: %w", err)
	}
	return f.Close()
}

func (yw *YAMLWriter) Close() error {
	return nil
}

func (yw *YAMLWriter) Validate() error {
	return validateFile("yaml", yw.path)
}
