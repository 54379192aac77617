package safety

import (
	"fmt"
	"strings"
	"unicode"
)

// Tag types. Members of any(...) are options.
const (
	TypPrecond = "precond"
	TypHazard  = "hazard"
	TypOption  = "option"
)

// Tag identifies a property kind and how it constrains the caller.
type Tag struct {
	Typ  string `json:"typ"`
	Name string `json:"name"`
}

// Property is one tag applied to concrete arguments.
type Property struct {
	Tag  Tag      `json:"tag"`
	Args []string `json:"args"`
}

// Properties is the content of one attribute: the tags and the optional
// free-text reason.
type Properties struct {
	Tags   []Property
	Reason string
}

// ParseError reports a malformed attribute. It only invalidates the one
// attribute it names.
type ParseError struct {
	Attr   string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("safety: parse %q at offset %d: %s", e.Attr, e.Offset, e.Msg)
}

// attribute kinds that carry safety properties
var propertyKinds = map[string]bool{
	"requires": true,
	"checked":  true,
}

// Parser turns raw tool attributes into Properties.
type Parser struct {
	tool string
	spec Spec
}

// NewParser returns a parser for attributes under tool, e.g. "rapx".
func NewParser(tool string, spec Spec) (*Parser, error) {
	if len(spec) == 0 {
		return nil, ErrEmptySpec
	}
	return &Parser{tool: tool, spec: spec}, nil
}

// Spec returns the table the parser validates against.
func (p *Parser) Spec() Spec { return p.spec }

// Parse parses one attribute. Attributes of other tools and tool
// attributes that carry no properties yield nil. A malformed attribute
// returns a *ParseError; a property missing from the table returns an
// error wrapping ErrUnknownProperty.
func (p *Parser) Parse(attr string) (*Properties, error) {
	body := strings.TrimSpace(attr)
	if strings.HasPrefix(body, "#[") {
		if !strings.HasSuffix(body, "]") {
			return nil, &ParseError{Attr: attr, Offset: len(attr), Msg: "unterminated attribute"}
		}
		body = strings.TrimSpace(body[2 : len(body)-1])
	}
	prefix := p.tool + "::"
	if !strings.HasPrefix(body, prefix) {
		return nil, nil
	}
	body = body[len(prefix):]
	open := strings.IndexByte(body, '(')
	if open < 0 {
		return nil, nil
	}
	if kind := strings.TrimSpace(body[:open]); !propertyKinds[kind] {
		return nil, nil
	}

	s := &scanner{attr: attr, src: body, pos: open}
	props := &Properties{}
	if err := s.expect('('); err != nil {
		return nil, err
	}
	if err := s.items(props, false); err != nil {
		return nil, err
	}
	if err := s.expect(')'); err != nil {
		return nil, err
	}
	if s.skipSpace(); s.pos != len(s.src) {
		return nil, s.errorf("unexpected trailing input")
	}

	for _, prop := range props.Tags {
		if _, ok := p.spec[prop.Tag.Name]; !ok {
			return nil, fmt.Errorf("%w: %s in %q", ErrUnknownProperty, prop.Tag.Name, attr)
		}
	}
	return props, nil
}

// ParseAll parses every attribute of one function. Malformed attributes
// are returned in bad and skipped; an unknown property aborts.
func (p *Parser) ParseAll(attrs []string) (props []Properties, bad []error, err error) {
	for _, attr := range attrs {
		sp, perr := p.Parse(attr)
		switch {
		case perr == nil && sp != nil:
			props = append(props, *sp)
		case perr == nil:
		case isParseError(perr):
			bad = append(bad, perr)
		default:
			return nil, nil, perr
		}
	}
	return props, bad, nil
}

func isParseError(err error) bool {
	_, ok := err.(*ParseError)
	return ok
}

// ---------------------------------------------------------------------------
// Scanner
// ---------------------------------------------------------------------------

type scanner struct {
	attr string
	src  string
	pos  int
}

func (s *scanner) errorf(format string, args ...any) error {
	return &ParseError{Attr: s.attr, Offset: s.pos, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *scanner) peek() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) expect(c byte) error {
	if s.peek() != c {
		return s.errorf("expected %q", c)
	}
	s.pos++
	return nil
}

// items parses a comma separated list up to the closing parenthesis.
func (s *scanner) items(props *Properties, option bool) error {
	for {
		switch s.peek() {
		case ')':
			return nil
		case 0:
			return s.errorf("unexpected end of input")
		case '"':
			if option {
				return s.errorf("reason inside any(...)")
			}
			text, err := s.str()
			if err != nil {
				return err
			}
			if props.Reason != "" {
				props.Reason += " "
			}
			props.Reason += text
		default:
			if err := s.property(props, option); err != nil {
				return err
			}
		}
		switch s.peek() {
		case ',':
			s.pos++
		case ')':
			return nil
		default:
			return s.errorf("expected ',' or ')'")
		}
	}
}

func (s *scanner) property(props *Properties, option bool) error {
	first, err := s.ident()
	if err != nil {
		return err
	}
	if first == "any" && s.peek() == '(' {
		s.pos++
		if err := s.items(props, true); err != nil {
			return err
		}
		return s.expect(')')
	}

	tag := Tag{Typ: TypPrecond, Name: first}
	if s.peek() == '.' {
		s.pos++
		name, err := s.ident()
		if err != nil {
			return err
		}
		switch first {
		case TypPrecond, TypHazard, TypOption:
		default:
			return s.errorf("unknown tag type %q", first)
		}
		tag = Tag{Typ: first, Name: name}
	}
	if option {
		tag.Typ = TypOption
	}

	prop := Property{Tag: tag, Args: []string{}}
	if s.peek() == '(' {
		s.pos++
		args, err := s.args()
		if err != nil {
			return err
		}
		prop.Args = args
	}
	props.Tags = append(props.Tags, prop)
	return nil
}

func (s *scanner) ident() (string, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) {
		c := rune(s.src[s.pos])
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		s.pos++
	}
	if start == s.pos {
		return "", s.errorf("expected identifier")
	}
	return s.src[start:s.pos], nil
}

func (s *scanner) str() (string, error) {
	start := s.pos
	s.pos++ // opening quote
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '\\':
			if s.pos+1 < len(s.src) {
				b.WriteByte(s.src[s.pos+1])
				s.pos += 2
				continue
			}
		case '"':
			s.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		s.pos++
	}
	s.pos = start
	return "", s.errorf("unterminated string")
}

// args reads raw argument expressions up to the matching ')'. Nested
// brackets and strings are kept verbatim.
func (s *scanner) args() ([]string, error) {
	args := []string{}
	depth := 0
	start := s.pos
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; c {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				if arg := strings.TrimSpace(s.src[start:s.pos]); arg != "" || len(args) > 0 {
					args = append(args, arg)
				}
				s.pos++
				return args, nil
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s.src[start:s.pos]))
				start = s.pos + 1
			}
		case '"':
			if _, err := s.str(); err != nil {
				return nil, err
			}
			continue
		}
		s.pos++
	}
	return nil, s.errorf("unterminated argument list")
}
