package jsonview

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func renderDoc(t *testing.T, tr *Tree) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(RenderHTML(tr)))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestRenderHTML_Structure(t *testing.T) {
	tr, err := Parse(`{"name":"tobe","tags":["a","b"],"n":1,"ok":false,"none":null}`)
	if err != nil {
		t.Fatal(err)
	}
	doc := renderDoc(t, tr)

	// 1 root + 5 members + 2 array items + closing ] + closing }.
	containers := doc.Find("div.json-line-container")
	if containers.Length() != 10 {
		t.Fatalf("lines: got %d, want 10", containers.Length())
	}

	first := containers.First()
	if first.HasClass("json-indent-0") || strings.Contains(first.AttrOr("class", ""), "json-indent") {
		t.Fatalf("root indented: %q", first.AttrOr("class", ""))
	}
	if first.Find(".json-toggle.expanded").Length() != 1 {
		t.Fatal("root toggle missing")
	}

	name := containers.Eq(1)
	if !name.HasClass("json-indent-1") || name.AttrOr("data-node-id", "") != "2" {
		t.Fatalf("name line: class %q id %q", name.AttrOr("class", ""), name.AttrOr("data-node-id", ""))
	}
	if got := name.Find(".json-key").Text(); got != `"name"` {
		t.Fatalf("key: got %q", got)
	}
	if got := name.Find(".json-string").Text(); got != `"tobe"` {
		t.Fatalf("string: got %q", got)
	}
	if got := name.Find(".json-line-content .json-comma").Length(); got != 2 {
		t.Fatalf("name commas: got %d, want 2 (separator and trailing)", got)
	}

	// tags opens with a bare bracket and no trailing comma.
	tags := containers.Eq(2)
	if got := tags.Find(".json-bracket").Text(); got != "[" {
		t.Fatalf("tags bracket: got %q", got)
	}
	if got := tags.Find(".json-comma").Length(); got != 1 {
		t.Fatalf("tags commas: got %d, want 1", got)
	}
	if tags.Find(".json-toggle.expanded").AttrOr("data-node-id", "") != "3" {
		t.Fatal("tags toggle id")
	}

	// Array items: comma on all but the last; closing ] numbered line+1.
	if containers.Eq(3).Find(".json-comma").Length() != 1 || containers.Eq(4).Find(".json-comma").Length() != 0 {
		t.Fatal("array item commas")
	}
	closeTags := containers.Eq(5)
	if closeTags.Find(".json-bracket").Text() != "]" || closeTags.AttrOr("data-node-id", "") != "4" {
		t.Fatalf("closing bracket: %q id %q", closeTags.Text(), closeTags.AttrOr("data-node-id", ""))
	}
	if closeTags.Find(".json-comma").Length() != 1 {
		t.Fatal("closing bracket of non-last member lacks comma")
	}

	if doc.Find(".json-number").Text() != "1" || doc.Find(".json-boolean").Text() != "false" || doc.Find(".json-null").Text() != "null" {
		t.Fatal("primitive spans")
	}
	if containers.Eq(8).Find(".json-comma").Length() != 1 {
		t.Fatal("last member has trailing comma")
	}
	if containers.Last().Find(".json-bracket").Text() != "}" {
		t.Fatal("root closing bracket")
	}
}

func TestRenderHTML_Collapsed(t *testing.T) {
	tr, _ := Parse(`{"a":{"x":1},"b":[]}`)
	tr.Toggle(2)
	doc := renderDoc(t, tr)

	a := doc.Find("div.json-line-container").Eq(1)
	if a.Find(".json-toggle.collapsed").Length() != 1 {
		t.Fatal("collapsed toggle missing")
	}
	if got := a.Find(".json-bracket").Text(); got != "{}" {
		t.Fatalf("collapsed brackets: got %q", got)
	}
	if a.Find(".json-comma").Length() != 2 {
		t.Fatal("collapsed member comma")
	}
	b := doc.Find("div.json-line-container").Eq(2)
	if b.Find(".json-toggle").Length() != 0 || b.Find(".json-bracket").Text() != "[]" {
		t.Fatal("empty array line")
	}
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	tr, _ := Parse(`{"<script>alert(1)</script>":"<img src=x onerror=alert(1)>"}`)
	out := RenderHTML(tr)
	if strings.Contains(out, "<script") || strings.Contains(out, "<img") {
		t.Fatalf("unescaped markup: %s", out)
	}
	doc := renderDoc(t, tr)
	if got := doc.Find(".json-string").Text(); got != `"<img src=x onerror=alert(1)>"` {
		t.Fatalf("string text: got %q", got)
	}
	if doc.Find("script, img").Length() != 0 {
		t.Fatal("element injected")
	}
}
