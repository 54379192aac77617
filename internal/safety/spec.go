// Package safety parses tool attributes such as
// #[rapx::requires(ValidPtr(p), any(Init(p), Null(p)), "reason")] into
// structured safety properties and checks them against a specification
// table loaded from YAML.
package safety

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptySpec means the specification table has no entries.
	ErrEmptySpec = errors.New("safety: property specification table is empty")
	// ErrUnknownProperty means an annotation names a property that the
	// specification table does not define.
	ErrUnknownProperty = errors.New("safety: unknown safety property")
)

//go:embed default_spec.yml
var defaultSpec []byte

// TagSpec describes one safety property kind.
type TagSpec struct {
	Args  []string `yaml:"args,omitempty" json:"args"`
	Desc  string   `yaml:"desc,omitempty" json:"desc,omitempty"`
	Expr  string   `yaml:"expr,omitempty" json:"expr,omitempty"`
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`
	URL   string   `yaml:"url,omitempty" json:"url,omitempty"`
}

// Spec maps a property name to its description.
type Spec map[string]TagSpec

type specFile struct {
	Tag Spec `yaml:"tag"`
}

// ParseSpec decodes a specification table. The document holds one mapping
// under the "tag" key.
func ParseSpec(data []byte) (Spec, error) {
	var f specFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode safety spec: %w", err)
	}
	if len(f.Tag) == 0 {
		return nil, ErrEmptySpec
	}
	return f.Tag, nil
}

// LoadSpec reads the table at path, or the built-in table when path is
// empty.
func LoadSpec(path string) (Spec, error) {
	if path == "" {
		return ParseSpec(defaultSpec)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety spec %s: %w", path, err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Names returns the property names in sorted order.
func (s Spec) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
