//go:build !cgo

package store

import "fmt"

// Open returns the backend named by kind. Without cgo only the in-memory
// backend is available.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemStore(), nil
	case "kuzu":
		return nil, fmt.Errorf("store: kuzu backend at %q requires a cgo build", path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", kind)
	}
}
