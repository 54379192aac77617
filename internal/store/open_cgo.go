//go:build cgo

package store

import "fmt"

// Open returns the backend named by kind: "memory" (or empty) or "kuzu".
// A kuzu store with an empty path lives in memory.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemStore(), nil
	case "kuzu":
		if path == "" {
			return NewKuzuStore()
		}
		return NewKuzuFileStore(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", kind)
	}
}
