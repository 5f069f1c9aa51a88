package jsonview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxDepth bounds nesting.
const MaxDepth = 10_000

var (
	// ErrEmpty is returned for blank input.
	ErrEmpty = errors.New("jsonview: please enter some JSON data")
	// ErrInvalid wraps every syntax error.
	ErrInvalid = errors.New("jsonview: invalid JSON")
)

// Parse builds a fully expanded tree from text. A repeated object key keeps
// its first position and its last value.
func Parse(text string) (*Tree, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmpty
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	root, err := parseValue(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrInvalid)
	}
	return NewTree(root), nil
}

func parseValue(dec *json.Decoder, level int) (*Node, error) {
	if level > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return &Node{Kind: KindPrimitive, Level: level, Index: -1, Value: tok, Expanded: true}, nil
	}

	switch delim {
	case '{':
		n := &Node{Kind: KindObject, Level: level, Index: -1, Expanded: true}
		pos := map[string]int{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", kt)
			}
			child, err := parseValue(dec, level+1)
			if err != nil {
				return nil, err
			}
			child.Key = key
			child.Parent = n
			if i, dup := pos[key]; dup {
				n.Children[i] = child
				continue
			}
			pos[key] = len(n.Children)
			n.Children = append(n.Children, child)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil

	case '[':
		n := &Node{Kind: KindArray, Level: level, Index: -1, Expanded: true}
		for dec.More() {
			child, err := parseValue(dec, level+1)
			if err != nil {
				return nil, err
			}
			child.Index = len(n.Children)
			child.Parent = n
			n.Children = append(n.Children, child)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unexpected %q", delim)
}
