package output

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

// Digest returns the hex xxh3 digest of data.
func Digest(data []byte) string {
	h := xxh3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ManifestEntry records one written record.
type ManifestEntry struct {
	Key    string `json:"key"`
	Size   int    `json:"size"`
	Digest string `json:"xxh3"`
}

// Manifest collects the digests of every record of a run. Two runs over the
// same input produce equal manifests.
type Manifest struct {
	mu      sync.Mutex
	entries map[string]ManifestEntry
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest { return &Manifest{entries: make(map[string]ManifestEntry)} }

func (m *Manifest) add(key Key, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	m.entries[k] = ManifestEntry{Key: k, Size: len(data), Digest: Digest(data)}
}

// Entries returns the entries sorted by key.
func (m *Manifest) Entries() []ManifestEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ManifestEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Diff returns the keys whose digest differs between m and other, including
// keys present in only one of them, sorted.
func (m *Manifest) Diff(other *Manifest) []string {
	a, b := index(m.Entries()), index(other.Entries())
	var out []string
	for k, e := range a {
		if o, ok := b[k]; !ok || o.Digest != e.Digest {
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func index(entries []ManifestEntry) map[string]ManifestEntry {
	m := make(map[string]ManifestEntry, len(entries))
	for _, e := range entries {
		m[e.Key] = e
	}
	return m
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Writer encodes records, hands them to a Sink and records their digests.
type Writer struct {
	Sink     Sink
	Manifest *Manifest
	Logger   *slog.Logger
}

// NewWriter returns a Writer over sink with a fresh manifest.
func NewWriter(sink Sink, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{Sink: sink, Manifest: NewManifest(), Logger: log}
}

// Dump encodes v and stores it under parent/stem.json.
func (w *Writer) Dump(ctx context.Context, parent, stem string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", parent, stem, err)
	}
	key := Key{Parent: parent, Stem: stem}
	if err := w.Sink.Put(ctx, key, data); err != nil {
		return err
	}
	w.Manifest.add(key, data)
	w.Logger.Debug("output.record", "key", key.String(), "size", len(data))
	return nil
}

// Caller writes a function record under <fn name>/caller.json.
func (w *Writer) Caller(ctx context.Context, rec *Caller) error {
	return w.Dump(ctx, rec.Name, "caller", rec)
}

// Adt writes a type record under adt/<name>.json.
func (w *Writer) Adt(ctx context.Context, rec *Adt) error {
	return w.Dump(ctx, CategoryAdt, rec.Name, rec)
}

// Navi writes the navigation tree under navi/tree.json.
func (w *Writer) Navi(ctx context.Context, v any) error {
	return w.Dump(ctx, CategoryNavi, "tree", v)
}
