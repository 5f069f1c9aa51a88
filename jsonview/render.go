package jsonview

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// viewerPolicy allows exactly the markup RenderHTML emits.
func viewerPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("div", "span")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z0-9 -]+$`)).OnElements("div", "span")
		p.AllowAttrs("data-node-id").Matching(bluemonday.Integer).OnElements("div", "span")
		policy = p
	})
	return policy
}

// RenderHTML renders the visible lines of t. Each line is a
// json-line-container div carrying the line number, an optional toggle and
// the line content; expanded containers are followed by their children and
// a closing-bracket line.
func RenderHTML(t *Tree) string {
	if t == nil || t.Root == nil {
		return ""
	}
	var b strings.Builder
	renderNode(&b, t.Root)
	return viewerPolicy().Sanitize(b.String())
}

func renderNode(b *strings.Builder, n *Node) {
	var content string
	if n.HasKey() {
		content = fmt.Sprintf(`<span class="json-key">"%s"</span><span class="json-comma">: </span>%s`,
			html.EscapeString(n.Key), valueHTML(n))
	} else {
		content = valueHTML(n)
	}
	writeLine(b, n.Level, n.Line, toggleHTML(n), content)

	if n.Expanded && len(n.Children) > 0 {
		for _, c := range n.Children {
			renderNode(b, c)
		}
		closing := "}"
		if n.Kind == KindArray {
			closing = "]"
		}
		writeLine(b, n.Level, n.Line+1, "", bracket(closing)+comma(n))
	}
}

func writeLine(b *strings.Builder, level, line int, toggle, content string) {
	indent := ""
	if level > 0 {
		indent = fmt.Sprintf(" json-indent-%d", level)
	}
	fmt.Fprintf(b, `<div class="json-line-container%s" data-node-id="%d">`, indent, line)
	fmt.Fprintf(b, `<div class="json-line-numbers"><span class="json-line-number">%d</span>%s</div>`, line, toggle)
	fmt.Fprintf(b, `<div class="json-line-content">%s</div></div>`+"\n", content)
}

func toggleHTML(n *Node) string {
	if len(n.Children) == 0 {
		return ""
	}
	state := "collapsed"
	if n.Expanded {
		state = "expanded"
	}
	return fmt.Sprintf(`<span class="json-toggle %s" data-node-id="%d"></span>`, state, n.Line)
}

// valueHTML is the value part of a node's own line. An expanded non-empty
// container shows only its opening bracket and no comma.
func valueHTML(n *Node) string {
	switch n.Kind {
	case KindObject, KindArray:
		open, closing := "{", "}"
		if n.Kind == KindArray {
			open, closing = "[", "]"
		}
		if n.Expanded && len(n.Children) > 0 {
			return bracket(open)
		}
		return bracket(open) + bracket(closing) + comma(n)
	}
	return primitiveHTML(n.Value) + comma(n)
}

func primitiveHTML(v any) string {
	switch x := v.(type) {
	case nil:
		return `<span class="json-null">null</span>`
	case bool:
		return fmt.Sprintf(`<span class="json-boolean">%t</span>`, x)
	case json.Number:
		return fmt.Sprintf(`<span class="json-number">%s</span>`, html.EscapeString(x.String()))
	case string:
		return fmt.Sprintf(`<span class="json-string">"%s"</span>`, html.EscapeString(x))
	}
	return ""
}

func bracket(s string) string {
	return `<span class="json-bracket">` + s + `</span>`
}

func comma(n *Node) string {
	if n.IsLast() {
		return ""
	}
	return `<span class="json-comma">,</span>`
}
