package eventio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ib-77/l1tnp/pkg/event"
)

// Sink stores probe records. Write is called from one goroutine at a time,
// in chunk order.
type Sink interface {
	Write(ctx context.Context, records []event.ProbeRecord) error
	Close() error
}

// JSONLSink writes one JSON object per record.
type JSONLSink struct {
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
	n   int
}

func CreateJSONL(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	w := bufio.NewWriter(f)
	return &JSONLSink{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

func (s *JSONLSink) Write(ctx context.Context, records []event.ProbeRecord) error {
	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		s.n++
	}
	return nil
}

// Written is the number of records written so far.
func (s *JSONLSink) Written() int {
	return s.n
}

func (s *JSONLSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return s.f.Close()
}

// ReadRecordsJSONL calls fn for every record of a file written by
// JSONLSink, stopping at the first error.
func ReadRecordsJSONL(ctx context.Context, path string, fn func(*event.ProbeRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open records: %w", err)
	}
	defer f.Close()
	return DecodeRecords(ctx, f, fn)
}

func DecodeRecords(ctx context.Context, r io.Reader, fn func(*event.ProbeRecord) error) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec event.ProbeRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
}
