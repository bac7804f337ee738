package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// ParquetSink writes cleaned datasets as Snappy-compressed Parquet files whose
// schema is derived from catalog.Product.
type ParquetSink struct {
	dir    string
	hasher catalog.Hasher
	logger *zap.Logger
}

// NewParquetSink returns a sink rooted at dir. A nil hasher defaults to SHA-256.
func NewParquetSink(dir string, hasher catalog.Hasher, logger *zap.Logger) *ParquetSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParquetSink{dir: dir, hasher: hasher, logger: logger}
}

// Dir returns the output directory.
func (s *ParquetSink) Dir() string {
	return s.dir
}

// Write persists data to <dir>/<name>_<ts>.parquet.
func (s *ParquetSink) Write(name string, ts time.Time, data catalog.CleanedDataset) (Artifact, error) {
	if len(data) == 0 {
		return Artifact{}, catalog.ErrEmptyDataset
	}
	path := filepath.Join(s.dir, FileName(name, ts, ".parquet"))

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[catalog.Product](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(data); err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := writer.Close(); err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	payload := buf.Bytes()

	sum, err := checksum(s.hasher, payload)
	if err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := writeAtomic(path, payload); err != nil {
		return Artifact{}, err
	}

	s.logger.Info("processed dataset written",
		zap.String("path", path),
		zap.Int("rows", len(data)),
		zap.Int("bytes", len(payload)),
	)
	return Artifact{Kind: KindProcessed, Path: path, Rows: len(data), Bytes: int64(len(payload)), SHA256: sum}, nil
}

// ReadParquet loads every row of a file written by ParquetSink.
func ReadParquet(path string) (catalog.CleanedDataset, error) {
	rows, err := parquet.ReadFile[catalog.Product](path)
	if err != nil {
		return nil, &catalog.IOError{Op: "read", Path: path, Err: err}
	}
	return catalog.CleanedDataset(rows), nil
}

// List returns the files in dir matching the glob pattern, newest first.
func List(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, &catalog.IOError{Op: "glob", Path: dir, Err: err}
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, &catalog.IOError{Op: "stat", Path: m, Err: err}
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].modTime.After(entries[j].modTime)
		}
		return entries[i].path > entries[j].path
	})

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.path)
	}
	return out, nil
}
