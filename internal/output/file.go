package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jakopako/mailwalk/internal/types"
)

// FileWriter writes the status of every run to its own json file.
type FileWriter struct {
	dir    string
	logger *slog.Logger
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *WriterConfig) (*FileWriter, error) {
	if wc.FileDir == "" {
		return nil, errors.New("filedir needs to be specified for the FileWriter")
	}
	if err := os.MkdirAll(wc.FileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", wc.FileDir, err)
	}
	return &FileWriter{
		dir:    wc.FileDir,
		logger: slog.With(slog.String("writer", string(FILE_WRITER_TYPE))),
	}, nil
}

// StatusPath returns the file the status of the given run is written to.
func (w *FileWriter) StatusPath(runID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("status-%s.json", runID))
}

func (w *FileWriter) WriteStatus(status types.RunStatus) error {
	// json.Marshal would escape the <> of sender names like "Shop <news@shop.example>"
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		return fmt.Errorf("error while encoding run status: %w", err)
	}

	path := w.StatusPath(status.RunID)
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error while writing run status to file: %w", err)
	}
	w.logger.Info(fmt.Sprintf("wrote run status to file %s", path))
	return nil
}
