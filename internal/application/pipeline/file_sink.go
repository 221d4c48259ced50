package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// FileResultSink writes each result as indented JSON under a directory.
type FileResultSink struct {
	dir string
	now func() time.Time
}

// NewFileResultSink returns a sink rooted at dir. The directory is created on
// first save.
func NewFileResultSink(dir string) *FileResultSink {
	return &FileResultSink{dir: dir, now: time.Now}
}

// Save writes result and returns the file path.
func (s *FileResultSink) Save(ctx context.Context, result clinical.DocumentResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := MarshalResult(result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to create results directory").WithDetail(s.dir)
	}
	path := filepath.Join(s.dir, clinical.ResultObjectName(result.DocMetadata.Source, s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to write result").WithDetail(path)
	}
	return path, nil
}

// MarshalResult encodes a result with two-space indentation and without HTML
// escaping.
func MarshalResult(result clinical.DocumentResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode result")
	}
	return buf.Bytes(), nil
}

//Personal.AI order the ending
