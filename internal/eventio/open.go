package eventio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ib-77/l1tnp/pkg/event"
)

// Sink kinds accepted by CreateSink and ReadRecords.
const (
	KindJSONL  = "jsonl"
	KindSQLite = "sqlite"
)

// CreateSink creates a sink of the given kind at path, replacing any
// previous output.
func CreateSink(kind, path string) (Sink, error) {
	switch kind {
	case KindJSONL:
		return CreateJSONL(path)
	case KindSQLite:
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to replace output: %w", err)
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}

// ReadRecords reads back a record file, guessing its kind from the
// extension: .db and .sqlite are SQLite, everything else JSON lines.
func ReadRecords(ctx context.Context, path string, fn func(*event.ProbeRecord) error) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("failed to open records: %w", err)
		}
		s, err := OpenSQLite(path)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.ReadRecords(ctx, fn)
	default:
		return ReadRecordsJSONL(ctx, path, fn)
	}
}
