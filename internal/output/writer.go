// Package output provides the writers for run results and the console
// that follows a run.
package output

import (
	"fmt"

	"github.com/jakopako/mailwalk/internal/types"
)

// Writer writes the status of a finished run to a specific output.
type Writer interface {
	WriteStatus(status types.RunStatus) error
}

// WriterConfig defines the necessary parameters to make a new writer
// which is responsible for writing run results to a specific output
// eg. stdout.
type WriterConfig struct {
	Type    WriterType `yaml:"type" env:"MAILWALK_OUTPUT" env-default:"stdout"`
	FileDir string     `yaml:"filedir" env-default:"./.mailwalk/runs"`
}

// WriterType encapsulates the type of a writer
// See below constants for possible types
type WriterType string

const (
	STDOUT_WRITER_TYPE WriterType = "stdout"
	FILE_WRITER_TYPE   WriterType = "file"
)

// NewWriter returns a new writer depending on the writer type
func NewWriter(wc *WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc)
	default:
		return nil, fmt.Errorf("writer of type '%s' not implemented", wc.Type)
	}
}
