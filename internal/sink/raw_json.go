package sink

import (
	"encoding/json"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// RawJSONSink writes raw datasets as indented JSON arrays.
type RawJSONSink struct {
	dir    string
	hasher catalog.Hasher
	logger *zap.Logger
}

// NewRawJSONSink returns a sink rooted at dir. A nil hasher defaults to SHA-256.
func NewRawJSONSink(dir string, hasher catalog.Hasher, logger *zap.Logger) *RawJSONSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RawJSONSink{dir: dir, hasher: hasher, logger: logger}
}

// Dir returns the output directory.
func (s *RawJSONSink) Dir() string {
	return s.dir
}

// Write persists a complete run to <dir>/<name>_<ts>.json.
func (s *RawJSONSink) Write(name string, ts time.Time, data catalog.RawDataset) (Artifact, error) {
	return s.write(KindRaw, FileName(name, ts, ".json"), data)
}

// WritePartial persists the records salvaged from an aborted run to
// <dir>/<name>_<ts>.partial.json.
func (s *RawJSONSink) WritePartial(name string, ts time.Time, data catalog.RawDataset) (Artifact, error) {
	return s.write(KindPartial, FileName(name, ts, ".partial.json"), data)
}

func (s *RawJSONSink) write(kind, file string, data catalog.RawDataset) (Artifact, error) {
	if len(data) == 0 {
		return Artifact{}, catalog.ErrEmptyDataset
	}
	path := filepath.Join(s.dir, file)

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	payload = append(payload, '\n')

	sum, err := checksum(s.hasher, payload)
	if err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := writeAtomic(path, payload); err != nil {
		return Artifact{}, err
	}

	s.logger.Info("raw dataset written",
		zap.String("kind", kind),
		zap.String("path", path),
		zap.Int("records", len(data)),
		zap.Int("bytes", len(payload)),
	)
	return Artifact{Kind: kind, Path: path, Rows: len(data), Bytes: int64(len(payload)), SHA256: sum}, nil
}
