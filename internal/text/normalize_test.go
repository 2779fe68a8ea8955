package text

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Plain prose",
			in:   "Hello there.  How are you?",
			want: "Hello there. How are you?",
		},
		{
			name: "Fenced code block",
			in:   "Here is some text.\n\n```go\nfunc main() {\n    fmt.Println(\"Hello\")\n}\n```\n\nMore text here.",
			want: "Here is some text. More text here.",
		},
		{
			name: "Tilde fence",
			in:   "Before.\n~~~\nrm -rf /\n~~~\nAfter.",
			want: "Before. After.",
		},
		{
			name: "Unterminated fence removes the rest",
			in:   "Look at this.\n```\nsome code",
			want: "Look at this.",
		},
		{
			name: "Inline code",
			in:   "Use the `fmt.Println()` function to print.",
			want: "Use the function to print.",
		},
		{
			name: "Link keeps label",
			in:   "Check out [my site](https://example.com) for more.",
			want: "Check out my site for more.",
		},
		{
			name: "Image keeps alt text",
			in:   "![Build graph](img/graph.png) shows the result.",
			want: "Build graph shows the result.",
		},
		{
			name: "Link label with nested brackets",
			in:   "See [the [v2] docs](https://x.com/a) now.",
			want: "See the v2 docs now.",
		},
		{
			name: "Reference link",
			in:   "Read [the guide][g] first.\n\n[g]: https://example.com/guide",
			want: "Read the guide first.",
		},
		{
			name: "Link with nested parentheses",
			in:   "Read [Go](https://en.wikipedia.org/wiki/Go_(programming_language)) today.",
			want: "Read Go today.",
		},
		{
			name: "Bare URL",
			in:   "See https://example.org/raw?x=1 for details.",
			want: "See for details.",
		},
		{
			name: "Bare URL keeps trailing period",
			in:   "Visit www.example.com. Then relax.",
			want: "Visit. Then relax.",
		},
		{
			name: "Custom scheme URL",
			in:   "Fetch s3://bucket/key today.",
			want: "Fetch today.",
		},
		{
			name: "Autolink",
			in:   "Mail <https://example.com/a> now.",
			want: "Mail now.",
		},
		{
			name: "Headings",
			in:   "# Title\n\nThis is a paragraph.\n## Summary ##\nDone.",
			want: "Title. This is a paragraph. Summary. Done.",
		},
		{
			name: "Hashtag is not a heading",
			in:   "#golang is fun.",
			want: "#golang is fun.",
		},
		{
			name: "Emphasis",
			in:   "This is **bold**, *italic*, ***both***, __strong__, _em_ and ~~gone~~ text.",
			want: "This is bold, italic, both, strong, em and gone text.",
		},
		{
			name: "Snake case survives",
			in:   "Set max_retries to three.",
			want: "Set max_retries to three.",
		},
		{
			name: "Multiplication is not emphasis",
			in:   "Compute 2 * 3 * 4 first.",
			want: "Compute 2 * 3 * 4 first.",
		},
		{
			name: "Blockquote",
			in:   "> This is a quote.\n> It spans lines.",
			want: "This is a quote. It spans lines.",
		},
		{
			name: "Lists",
			in:   "Items:\n- First item\n* Second item\n+ Third item\n1) Fourth item\n2) Fifth item!",
			want: "Items: First item. Second item. Third item. Fourth item. Fifth item!",
		},
		{
			name: "Unpunctuated paragraphs",
			in:   "Hello, world\n\n\nNext para",
			want: "Hello, world. Next para",
		},
		{
			name: "Nested list",
			in:   "- Parent\n  - Child",
			want: "Parent. Child.",
		},
		{
			name: "Horizontal rule",
			in:   "Above.\n\n---\n\nBelow.",
			want: "Above. Below.",
		},
		{
			name: "Whitespace only",
			in:   " \n\t ",
			want: "",
		},
		{
			name: "Empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Check out [my site](https://example.com) for more.",
		"-\nfoo",
		"1.\nSecond line",
		"# \n## Heading\n> > nested quote",
		"**a*",
		"_a_ _b_ _c_",
		"```\nunterminated",
		"text `` with `odd` backticks ` here",
		"[label]\n(https://example.com)",
		"www.example.com/a.b.c. Next sentence.",
		"Mixed **bold _and em_** with ~~strike~~ and [a](b) http://c.d/e",
		"* * *\n- - -\n___",
		"  ### Trailing ###  \n\n\n+ one\n+ two",
		"Already normalized text. Nothing to do here!",
		"See [the [v2] docs](https://x.com/a) now.",
		"Hello, world\n\n\nNext para",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestNormalizeLinksBeforeURLs(t *testing.T) {
	got := Normalize("See [the docs](https://docs.example.com/guide) and also https://example.org/raw for details.")
	want := "See the docs and also for details."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	for _, leftover := range []string{"[", "]", "(", ")", "http"} {
		if strings.Contains(got, leftover) {
			t.Errorf("Expected no %q in %q", leftover, got)
		}
	}
}

func TestNormalizeRemovesMarkers(t *testing.T) {
	in := "## Plan\n\n> **Note:** run `make`\n\n- step *one*\n- step ~~two~~\n\n```sh\necho hi\n```"
	got := Normalize(in)
	for _, marker := range []string{"```", "`", "**", "~~", "##", "> ", "- "} {
		if strings.Contains(got, marker) {
			t.Errorf("Expected marker %q to be removed from %q", marker, got)
		}
	}
	if strings.Contains(got, "  ") || strings.TrimSpace(got) != got {
		t.Errorf("Expected collapsed, trimmed whitespace, got %q", got)
	}
}

func TestNormalizeNestedLinkLabel(t *testing.T) {
	got := Normalize("See [the [v2] docs](https://x.com/a) now.")
	if got != "See the v2 docs now." {
		t.Errorf("Expected %q, got %q", "See the v2 docs now.", got)
	}
	if strings.ContainsAny(got, "[]") {
		t.Errorf("Expected no brackets in %q", got)
	}
}
