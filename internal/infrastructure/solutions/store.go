package solutions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aeginies/backend/internal/domain"
)

// FileStore persists solutions as one indented JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads every solution. A missing or empty file holds no solutions.
func (s *FileStore) Load(ctx context.Context) (domain.Solutions, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Solutions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading solutions: %w", err)
	}
	return Decode(data)
}

// Save replaces the stored solutions atomically
func (s *FileStore) Save(ctx context.Context, solutions domain.Solutions) error {
	data, err := Encode(solutions)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".solutions-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing solutions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing solutions: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Decode parses a solutions document
func Decode(data []byte) (domain.Solutions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Solutions{}, nil
	}
	var out domain.Solutions
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSolutions, err)
	}
	if out == nil {
		out = domain.Solutions{}
	}
	return out, nil
}

// Encode renders solutions with four-space indentation and non-ASCII kept verbatim
func Encode(solutions domain.Solutions) ([]byte, error) {
	if solutions == nil {
		solutions = domain.Solutions{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(solutions); err != nil {
		return nil, fmt.Errorf("encoding solutions: %w", err)
	}
	return buf.Bytes(), nil
}
