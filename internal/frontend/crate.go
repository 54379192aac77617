// Package frontend loads a Rust crate from source with tree-sitter and
// lowers it into the ir model: ADT and function definitions, simplified
// bodies made of typed locals and place expressions, and the items of the
// navigation tree.
package frontend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/upg/internal/ir"
)

// Crate is an ir.Source reading a crate directory.
type Crate struct {
	// Dir is the crate root, the directory holding Cargo.toml or src/.
	Dir string
	// Name is the unit name. Empty means the Cargo package name, or the
	// directory name when there is no manifest.
	Name string
	// Concurrency bounds parallel parsing. Zero means GOMAXPROCS.
	Concurrency int
	Logger      *slog.Logger
}

var _ ir.Source = (*Crate)(nil)

// parsedFile is one source file with its syntax tree. The tree stays open
// until lowering is complete.
type parsedFile struct {
	rel    string
	module []string
	src    []byte
	tree   *tree_sitter.Tree
}

func (c *Crate) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Load parses every source file of the crate concurrently, then collects
// declarations and lowers bodies sequentially in path order.
func (c *Crate) Load(ctx context.Context) (*ir.Unit, error) {
	log := c.logger()
	name := c.Name
	if name == "" {
		name = crateName(c.Dir)
	}

	srcDir, files, err := discover(c.Dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rust sources under %s", c.Dir)
	}
	log.Info("frontend.files", "crate", name, "dir", srcDir, "files", len(files))

	parsed, err := c.parseAll(ctx, srcDir, files)
	defer func() {
		for _, pf := range parsed {
			if pf != nil && pf.tree != nil {
				pf.tree.Close()
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	col := newCollector(name, log)
	for _, pf := range parsed {
		col.collectFile(pf)
	}
	col.resolveDecls()
	col.lowerBodies()
	return col.unit(), nil
}

func (c *Crate) parseAll(ctx context.Context, srcDir string, files []string) ([]*parsedFile, error) {
	limit := c.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	lang := tree_sitter.NewLanguage(tree_sitter_rust.Language())

	results := make([]*parsedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, err := parseFile(lang, srcDir, rel)
			if err != nil {
				return err
			}
			if pf.tree.RootNode().HasError() {
				c.logger().Warn("frontend.syntax_error", "file", pf.rel)
			}
			results[i] = pf
			return nil
		})
	}
	return results, g.Wait()
}

func parseFile(lang *tree_sitter.Language, srcDir, rel string) (*parsedFile, error) {
	src, err := os.ReadFile(filepath.Join(srcDir, rel))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set language rust: %w", err)
	}
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", rel)
	}
	return &parsedFile{
		rel:    filepath.ToSlash(filepath.Join("src", rel)),
		module: modulePath(rel),
		src:    src,
		tree:   tree,
	}, nil
}

// discover returns the source directory and the .rs files below it,
// relative and sorted. Binary targets are skipped, and main.rs is skipped
// when the crate also has a library root.
func discover(dir string) (string, []string, error) {
	srcDir := filepath.Join(dir, "src")
	if st, err := os.Stat(srcDir); err != nil || !st.IsDir() {
		srcDir = dir
	}
	var files []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(srcDir, path)
		if d.IsDir() {
			switch d.Name() {
			case "bin", "target", ".git":
				if rel != "." {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(path, ".rs") {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("walk %s: %w", srcDir, err)
	}
	hasLib := false
	for _, f := range files {
		if f == "lib.rs" {
			hasLib = true
		}
	}
	if hasLib {
		kept := files[:0]
		for _, f := range files {
			if f != "main.rs" {
				kept = append(kept, f)
			}
		}
		files = kept
	}
	sort.Strings(files)
	return srcDir, files, nil
}

// modulePath maps a file below src/ to its module segments.
func modulePath(rel string) []string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".rs")
	parts := strings.Split(rel, "/")
	switch last := parts[len(parts)-1]; {
	case len(parts) == 1 && (last == "lib" || last == "main"):
		return nil
	case last == "mod":
		parts = parts[:len(parts)-1]
	}
	return parts
}

// crateName reads the package name from Cargo.toml, falling back to the
// directory name. Dashes become underscores as in rustc.
func crateName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	if data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml")); err == nil {
		inPackage := false
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if strings.HasPrefix(line, "[") {
				inPackage = line == "[package]"
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if inPackage && ok && strings.TrimSpace(key) == "name" {
				name = strings.Trim(strings.TrimSpace(value), `"'`)
				break
			}
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}
