package safety

import (
	"strings"
)

// Bundle is the tag section of a function record.
type Bundle struct {
	Tags []Property         `json:"tags"`
	Spec map[string]TagSpec `json:"spec"`
	Docs []string           `json:"docs"`
}

// NewBundle collects the tags of every attribute together with the table
// entries they use and one hover document per attribute.
func NewBundle(props []Properties, spec Spec) Bundle {
	b := Bundle{
		Tags: []Property{},
		Spec: map[string]TagSpec{},
		Docs: []string{},
	}
	for _, sp := range props {
		b.Docs = append(b.Docs, HoverDoc(sp, spec))
		b.Tags = append(b.Tags, sp.Tags...)
		for _, tag := range sp.Tags {
			if ts, ok := spec[tag.Tag.Name]; ok {
				if _, seen := b.Spec[tag.Tag.Name]; !seen {
					b.Spec[tag.Tag.Name] = ts
				}
			}
		}
	}
	return b
}

// HoverDoc renders one attribute as markdown: one bullet per tag with the
// table description instantiated with the tag's arguments, then the reason.
func HoverDoc(sp Properties, spec Spec) string {
	var b strings.Builder
	for _, prop := range sp.Tags {
		b.WriteString("* ")
		if prop.Tag.Typ != TypPrecond {
			b.WriteString(prop.Tag.Typ)
			b.WriteByte('.')
		}
		b.WriteString(prop.Tag.Name)
		if len(prop.Args) > 0 {
			b.WriteString("(" + strings.Join(prop.Args, ", ") + ")")
		}
		if ts, ok := spec[prop.Tag.Name]; ok && ts.Desc != "" {
			b.WriteString(": ")
			b.WriteString(instantiate(ts, prop.Args))
		}
		b.WriteByte('\n')
	}
	if sp.Reason != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sp.Reason)
		b.WriteByte('\n')
	}
	return b.String()
}

// instantiate replaces {param} placeholders with positional arguments.
// Placeholders without a matching argument are left as written.
func instantiate(ts TagSpec, args []string) string {
	desc := ts.Desc
	for i, param := range ts.Args {
		if i >= len(args) {
			break
		}
		desc = strings.ReplaceAll(desc, "{"+param+"}", args[i])
	}
	return desc
}
