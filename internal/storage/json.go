package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/drmick/unichecker/internal/model"
)

// JSONStorage writes pool records to a file as one JSON array.
type JSONStorage struct {
	path string
	mu   sync.Mutex
}

func NewJSONStorage(path string) *JSONStorage {
	return &JSONStorage{path: path}
}

// PutPoolRecords replaces the file content with records. An empty slice
// writes "[]".
func (s *JSONStorage) PutPoolRecords(_ context.Context, records []model.DexPoolRecord) error {
	if records == nil {
		records = []model.DexPoolRecord{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeAtomic(s.path, func(w *bufio.Writer) error {
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("marshal pool records: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write pool records: %w", err)
		}
		return nil
	})
}

func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush output: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
