package text

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

// maxPasses bounds the fixpoint loop in Normalize. Real text settles after
// one or two passes.
const maxPasses = 16

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
)

var (
	// Bare URLs Linkify leaves alone, such as custom schemes. They never
	// end on trailing sentence punctuation.
	bareURLRe = regexp.MustCompile(`\b(?:[a-zA-Z][a-zA-Z0-9+.-]*://|www\.)[^\s<>]*[^\s<>.,;:!?'")\]]`)

	emptyBracketsRe    = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	whitespaceRe       = regexp.MustCompile(`\s+`)
	spaceBeforePunctRe = regexp.MustCompile(` ([.,;:!?])`)

	labelBrackets = strings.NewReplacer("[", "", "]", "")
)

// Normalize strips markup and structural noise from raw text so only prose
// remains. Link and image labels are kept and their targets dropped, bare
// URLs are removed, and every block that ends without punctuation is closed
// with a period so the segmenter sees the boundary. Normalize is pure and
// idempotent.
func Normalize(raw string) string {
	s := raw
	for i := 0; i < maxPasses; i++ {
		next := normalizePass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func normalizePass(s string) string {
	source := []byte(s)
	doc := markdown.Parser().Parse(gmtext.NewReader(source))

	w := &speechWriter{}
	w.walk(doc, source)

	out := string(w.buf)
	out = bareURLRe.ReplaceAllString(out, "")
	out = emptyBracketsRe.ReplaceAllString(out, "")
	out = whitespaceRe.ReplaceAllString(out, " ")
	out = spaceBeforePunctRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

// speechWriter collects the speakable text of a markdown tree.
type speechWriter struct {
	buf []byte
	// pending is set when a block has closed. The next write terminates
	// the previous block first, so the final block keeps its own ending.
	pending bool
	// label counts enclosing links and images.
	label int
}

func (w *speechWriter) walk(node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		w.pending = true
		return

	case *ast.CodeSpan, *ast.RawHTML:
		return

	case *ast.AutoLink:
		if n.AutoLinkType == ast.AutoLinkEmail {
			w.write(string(n.Label(source)))
		}
		return

	case *ast.Text:
		w.write(string(n.Segment.Value(source)))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.write(" ")
		}
		return

	case *ast.String:
		w.write(string(n.Value))
		return

	case *ast.Link, *ast.Image:
		w.label++
		w.walkChildren(n, source)
		w.label--
		return

	case *ast.Heading, *ast.ListItem:
		// Spoken as sentences of their own, even at the end.
		start := len(w.buf)
		w.walkChildren(n, source)
		w.terminate(start)
		w.pending = true
		return
	}

	w.walkChildren(node, source)
	if node.Type() == ast.TypeBlock {
		w.pending = true
	}
}

func (w *speechWriter) walkChildren(n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c, source)
	}
}

func (w *speechWriter) write(s string) {
	if s == "" {
		return
	}
	if w.label > 0 {
		s = labelBrackets.Replace(s)
	}
	if w.pending {
		w.pending = false
		w.terminate(0)
		if len(w.buf) > 0 {
			w.buf = append(w.buf, ' ')
		}
	}
	w.buf = append(w.buf, s...)
}

// terminate trims trailing whitespace and appends a period when the text
// written since start lacks closing punctuation.
func (w *speechWriter) terminate(start int) {
	for len(w.buf) > start && isSpaceByte(w.buf[len(w.buf)-1]) {
		w.buf = w.buf[:len(w.buf)-1]
	}
	if len(w.buf) <= start {
		return
	}
	i := len(w.buf) - 1
	for i > start && isCloserByte(w.buf[i]) {
		i--
	}
	switch w.buf[i] {
	case '.', '!', '?', ':', ';', ',':
		return
	}
	w.buf = append(w.buf, '.')
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isCloserByte(b byte) bool {
	return b == '"' || b == '\'' || b == ')' || b == ']'
}
