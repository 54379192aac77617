package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Record categories.
const (
	CategoryAdt  = "adt"
	CategoryNavi = "navi"
)

// Key locates one record: <parent>/<stem>.json under the unit directory.
type Key struct {
	Parent string
	Stem   string
}

func (k Key) String() string { return k.Parent + "/" + k.Stem + ".json" }

// Sink stores encoded records.
type Sink interface {
	Put(ctx context.Context, key Key, data []byte) error
}

// Encode renders a record as indented JSON. Map keys are sorted by the
// encoder, so equal records encode to equal bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ---------------------------------------------------------------------------
// DirSink
// ---------------------------------------------------------------------------

// DirSink writes records below Dir, one file per record.
type DirSink struct {
	Dir string
}

var _ Sink = (*DirSink)(nil)

// NewDirSink creates base/unit and returns a sink rooted there.
func NewDirSink(base, unit string) (*DirSink, error) {
	dir := filepath.Join(base, unit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &DirSink{Dir: dir}, nil
}

// Put writes data to Dir/parent/stem.json.
func (s *DirSink) Put(_ context.Context, key Key, data []byte) error {
	parent := filepath.Join(s.Dir, key.Parent)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", parent, err)
	}
	path := filepath.Join(parent, key.Stem+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// StreamSink
// ---------------------------------------------------------------------------

// StreamSink prints every record to W, each surrounded by blank lines.
type StreamSink struct {
	mu sync.Mutex
	W  io.Writer
}

var _ Sink = (*StreamSink)(nil)

// NewStreamSink returns a sink printing to w.
func NewStreamSink(w io.Writer) *StreamSink { return &StreamSink{W: w} }

// Put writes data to the stream.
func (s *StreamSink) Put(_ context.Context, _ Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.W, "\n%s\n", data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// MemSink
// ---------------------------------------------------------------------------

// MemSink keeps records in memory. Thread-safe via sync.RWMutex.
type MemSink struct {
	mu      sync.RWMutex
	records map[Key][]byte
}

var _ Sink = (*MemSink)(nil)

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink { return &MemSink{records: make(map[Key][]byte)} }

// Put stores a copy of data under key, replacing any earlier record.
func (s *MemSink) Put(_ context.Context, key Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = bytes.Clone(data)
	return nil
}

// Get returns the record under key, or nil.
func (s *MemSink) Get(key Key) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key]
}

// Keys returns every stored key sorted by its path.
func (s *MemSink) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
