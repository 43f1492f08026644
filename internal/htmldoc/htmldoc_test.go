// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package htmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "plain text", input: "just text"},
		{name: "marker with newlines", input: "<span class=\"sync\" note=\"12\">\n<div>one</div>\n</span>"},
		{name: "nbsp entity", input: `<div>one&nbsp;two</div>`},
		{name: "attribute order kept", input: `<span sid="1" class="sync">x</span>`},
		{name: "void element", input: `a<br>b<img src="x.png">`},
		{name: "quotes in text", input: `say "hi" and 'bye'`},
		{name: "escaped markup", input: `1 &lt; 2 &amp;&amp; 3 &gt; 2`},
		{name: "surrounding text", input: `Before <span class="sync" note="1"></span> After`},
		{name: "tex brackets", input: `<div>\[a b c\]</div>`},
		{name: "nested list", input: `<div id="assumptions"><ol><li>A</li><li>B</li></ol></div>`},
		{name: "comment", input: `<!-- note -->x`},
		{name: "table without tbody", input: `<table><tr><td>a</td></tr></table>`},
		{name: "crlf line endings", input: "one\r\n<div>two\r\nthree</div>\r\n"},
		{name: "stray end tag", input: `a</b>c`},
		{name: "paragraph holding a div", input: `<p>a<div>b</div></p>`},
		{name: "ampersand entity", input: `<div>x&amp;y</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.input, doc.Render())
		})
	}
}

func TestSelfClosingMarkerIsEmpty(t *testing.T) {
	doc, err := Parse(`<span class="sync" note="1"/> After text`)
	require.NoError(t, err)

	spans := doc.DirectChildren("span", nil)
	require.Len(t, spans, 1)
	assert.Nil(t, spans[0].FirstChild)
	assert.Equal(t, `<span class="sync" note="1"></span> After text`, doc.Render())
}

func TestEndTagClosesNearestOpenElement(t *testing.T) {
	doc, err := Parse(`<div><b>bold</div>after`)
	require.NoError(t, err)
	assert.Equal(t, `<div><b>bold</b></div>after`, doc.Render())
}

func TestRawTextKept(t *testing.T) {
	input := `<script>if (a < b && c) {}</script>`
	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, input, doc.Render())
}

func TestDirectChildren(t *testing.T) {
	doc, err := Parse(`<span class="sync" note="1"></span><div><span class="sync" note="2"></span></div><span class="other sync">x</span><span>y</span>`)
	require.NoError(t, err)

	all := doc.DirectChildren("span", nil)
	assert.Len(t, all, 3)

	synced := doc.DirectChildren("span", func(n *html.Node) bool { return HasClass(n, "sync") })
	require.Len(t, synced, 2)
	v, ok := Attr(synced[0], "note")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.False(t, HasAttr(synced[1], "note"))
}

func TestHasClass(t *testing.T) {
	tests := []struct {
		class string
		want  bool
	}{
		{class: "sync", want: true},
		{class: "a sync b", want: true},
		{class: "  sync  ", want: true},
		{class: "synced", want: false},
		{class: "", want: false},
	}
	for _, tt := range tests {
		n := NewElement("span", "class", tt.class)
		assert.Equal(t, tt.want, HasClass(n, "sync"), "class=%q", tt.class)
	}
	assert.False(t, HasClass(NewElement("span"), "sync"))
}

func TestSetAttrKeepsPosition(t *testing.T) {
	n := NewElement("span", "class", "sync", "sid", "old", "data-x", "1")
	SetAttr(n, "sid", "new")
	SetAttr(n, "title", "t")
	assert.Equal(t, `<span class="sync" sid="new" data-x="1" title="t"></span>`, RenderNode(n))
}

func TestAttributeEscaping(t *testing.T) {
	n := NewElement("span", "title", `a "b" & c`)
	n.AppendChild(NewText("x\u00a0y"))
	assert.Equal(t, `<span title="a &quot;b&quot; &amp; c">x&nbsp;y</span>`, RenderNode(n))
}

func TestCloneIsDeepAndDetached(t *testing.T) {
	doc, err := Parse(`<span class="sync" sid="1"><b>bold</b> text</span>`)
	require.NoError(t, err)
	orig := doc.DirectChildren("span", nil)[0]

	c := Clone(orig)
	assert.Nil(t, c.Parent)
	assert.Equal(t, RenderNode(orig), RenderNode(c))

	SetAttr(c, "sid", "2")
	RemoveChildren(c)
	assert.Equal(t, `<span class="sync" sid="1"><b>bold</b> text</span>`, RenderNode(orig))
	assert.Equal(t, `<span class="sync" sid="2"></span>`, RenderNode(c))
}

func TestReplaceChildrenAndInnerHTML(t *testing.T) {
	doc, err := Parse(`a<span class="sync">old</span>b`)
	require.NoError(t, err)
	span := doc.DirectChildren("span", nil)[0]

	div := NewElement("div")
	div.AppendChild(NewText("new"))
	ReplaceChildren(span, div, NewText("!"))

	assert.Equal(t, `<div>new</div>!`, InnerHTML(span))
	assert.Equal(t, `a<span class="sync"><div>new</div>!</span>b`, doc.Render())
}

func TestReplaceWith(t *testing.T) {
	doc, err := Parse(`x<span sid="1">a</span>y`)
	require.NoError(t, err)
	old := doc.DirectChildren("span", nil)[0]

	ReplaceWith(old, NewElement("span", "sid", "2"))
	assert.Equal(t, `x<span sid="2"></span>y`, doc.Render())
	assert.Nil(t, old.Parent)

	// Detached nodes are left alone.
	ReplaceWith(NewElement("i"), NewElement("b"))
}

func TestAppendHTML(t *testing.T) {
	div := NewElement("div", "class", "first-upper")
	require.NoError(t, AppendHTML(div, `a<b>b</b>.`))
	assert.Equal(t, `<div class="first-upper">a<b>b</b>.</div>`, RenderNode(div))
}

func TestFragment(t *testing.T) {
	var f Fragment
	assert.Empty(t, f.Nodes())

	f.Append(NewText("\n"), NewElement("div"), NewText("\n"))
	require.Len(t, f.Nodes(), 3)

	parent := NewElement("span")
	ReplaceChildren(parent, f.Nodes()...)
	assert.Equal(t, "<span>\n<div></div>\n</span>", RenderNode(parent))
}

func TestAppendHTMLStaysInsideParent(t *testing.T) {
	div := NewElement("div")
	require.NoError(t, AppendHTML(div, `a</div>b`))
	assert.Equal(t, `<div>a</div>b</div>`, RenderNode(div))
}
