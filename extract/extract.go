// Package extract turns raw HTML pages into normalized markdown text.
//
// Normalization strips non-content elements (scripts, navigation, headers,
// footers, asides), picks the first content-bearing region from a priority
// list of selectors, sanitizes it with bluemonday, and converts it to
// markdown. The page <title> is returned separately.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrEmptyDocument is returned for a blank input.
	ErrEmptyDocument = errors.New("extract: empty document")
	// ErrNoContent is returned when nothing readable is left after stripping.
	ErrNoContent = errors.New("extract: no readable content")
)

// DefaultRegionHints is the region priority list, most specific first.
// The whole body is used when none of them matches.
var DefaultRegionHints = []string{
	"main",
	"article",
	"div[role=main]",
	".content",
	"#content",
	".post-content",
}

// Document is the normalized form of one page.
type Document struct {
	Title  *string `json:"title"`  // nil when the page has no <title>
	Text   string  `json:"text"`   // markdown of the chosen region
	Region string  `json:"region"` // matching hint, "body" or "document"
}

// Normalizer converts HTML to Document. Safe for concurrent use.
type Normalizer struct {
	hints  []string
	strip  []atom.Atom
	policy *bluemonday.Policy
	md     *converter.Converter
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRegionHints replaces the region priority list.
func WithRegionHints(hints ...string) Option {
	return func(n *Normalizer) { n.hints = hints }
}

// WithStrip replaces the list of elements removed before region selection.
// Unknown element names are ignored.
func WithStrip(names ...string) Option {
	return func(n *Normalizer) {
		n.strip = n.strip[:0:0]
		for _, name := range names {
			if a := atom.Lookup([]byte(strings.ToLower(name))); a != 0 {
				n.strip = append(n.strip, a)
			}
		}
	}
}

// NewNormalizer returns a Normalizer with the default hints and strip list.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		hints:  DefaultRegionHints,
		strip:  DefaultStrip,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize parses raw, strips boilerplate, selects the content region and
// returns it as markdown. sourceURL resolves relative links.
func (n *Normalizer) Normalize(raw []byte, sourceURL string) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyDocument
	}
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("extract: parse: %w", err)
	}

	out := &Document{}
	if t := findTitle(doc); t != "" {
		out.Title = &t
	}

	stripNodes(doc, n.strip)
	region, name := n.selectRegion(doc)
	out.Region = name

	rendered, err := renderNode(region)
	if err != nil {
		return nil, fmt.Errorf("extract: render: %w", err)
	}
	clean := n.policy.Sanitize(rendered)

	md, err := n.md.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("extract: markdown: %w", err)
	}
	out.Text = CleanText(md)
	if out.Text == "" {
		return nil, ErrNoContent
	}
	return out, nil
}

// selectRegion returns the first node matching a hint that still carries
// text, then the body, then the whole document.
func (n *Normalizer) selectRegion(doc *html.Node) (*html.Node, string) {
	for _, hint := range n.hints {
		for _, node := range querySelectorAll(doc, hint) {
			if hasText(node) {
				return node, hint
			}
		}
	}
	if body := findBody(doc); body != nil {
		return body, "body"
	}
	return doc, "document"
}

var (
	blankLines    = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// CleanText trims trailing whitespace on each line and collapses runs of
// blank lines to one.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Preview returns the first max runes of text followed by "...", or text
// unchanged when it is not longer than max.
func Preview(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
