package jsonview

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultIndent is the pretty-print indent.
const DefaultIndent = "  "

// Format pretty prints text with indent (DefaultIndent when empty). An
// indent of "-" produces the compact form.
func Format(text, indent string) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Marshal(indent)
}

// Marshal serializes the tree in document order. Expanded flags do not
// matter.
func (t *Tree) Marshal(indent string) (string, error) {
	var compact bytes.Buffer
	if err := writeCompact(&compact, t.Root); err != nil {
		return "", err
	}
	if indent == "-" {
		return compact.String(), nil
	}
	if indent == "" {
		indent = DefaultIndent
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", indent); err != nil {
		return "", err
	}
	return out.String(), nil
}

func writeCompact(b *bytes.Buffer, n *Node) error {
	switch n.Kind {
	case KindObject:
		b.WriteByte('{')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeString(b, c.Key); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeCompact(b, c); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case KindArray:
		b.WriteByte('[')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCompact(b, c); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		switch v := n.Value.(type) {
		case string:
			return writeString(b, v)
		case json.Number:
			b.WriteString(v.String())
		case bool:
			if v {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		default:
			b.WriteString("null")
		}
	}
	return nil
}

func writeString(b *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.WriteString(strings.TrimSuffix(tmp.String(), "\n"))
	return nil
}
