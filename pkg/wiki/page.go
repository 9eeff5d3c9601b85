package wiki

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/internal/util"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	selInfobox      = cascadia.MustCompile("aside.portable-infobox")
	selInfoboxImage = cascadia.MustCompile("figure.pi-item.pi-image img")
	selImage        = cascadia.MustCompile("img")
	selInfoboxTitle = cascadia.MustCompile("h2.pi-title")
	selInfoboxItem  = cascadia.MustCompile("div.pi-item")
	selDataLabel    = cascadia.MustCompile("h3.pi-data-label")
	selDataValue    = cascadia.MustCompile("div.pi-data-value")
	selCategory     = cascadia.MustCompile(`a[href*="/wiki/Category:"]`)
	selHeader       = cascadia.MustCompile("h1.page-header__title, h1#firstHeading")
	selDocTitle     = cascadia.MustCompile("title")
	selCanonical    = cascadia.MustCompile(`link[rel="canonical"]`)
	selContent      = cascadia.MustCompile("div.mw-parser-output")
	selParagraph    = cascadia.MustCompile("p")
	selAnchor       = cascadia.MustCompile("a[href]")
	selHeading      = cascadia.MustCompile("h2, h3")
)

// Link is a validated in-wiki article link.
type Link struct {
	Target string
	Text   string
}

// Block is one content element (paragraph, list, table, ...) with its
// visible text and the article links it contains.
type Block struct {
	Tag   string
	Text  string
	Links []Link
}

// Section is a h2/h3 heading and the sibling blocks that follow it up to
// the next h2/h3.
type Section struct {
	Level   int
	Heading string
	Links   []Link
	Blocks  []Block
}

type InfoboxField struct {
	Label string
	Value string
	Links []Link
}

// Infobox is the structured side panel of an article.
type Infobox struct {
	Name     string
	ImageURL string
	Fields   []InfoboxField
	Text     string
}

// Get returns the value of the field with the exact label.
func (i *Infobox) Get(label string) (string, bool) {
	if i == nil {
		return "", false
	}
	for _, f := range i.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// Field returns the field with the exact label.
func (i *Infobox) Field(label string) (InfoboxField, bool) {
	if i == nil {
		return InfoboxField{}, false
	}
	for _, f := range i.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return InfoboxField{}, false
}

// Page is the parsed form of a wiki article.
type Page struct {
	Canonical  string
	URL        string
	Title      string
	Infobox    *Infobox
	Categories []string
	Sections   []Section
	Paragraphs []Block
	Text       string
	Summary    string

	canonicalHint string
}

func (p *Page) HasInfobox() bool {
	return p != nil && p.Infobox != nil
}

// CategoryText is the lower-cased, space separated category list.
func (p *Page) CategoryText() string {
	return strings.ToLower(strings.Join(p.Categories, " "))
}

// InfoboxText is the lower-cased visible text of the infobox.
func (p *Page) InfoboxText() string {
	if p.Infobox == nil {
		return ""
	}
	return strings.ToLower(p.Infobox.Text)
}

// Attributes flattens the infobox into an attribute bag. Footnote markers
// and editorial brackets are stripped from labels and values.
func (p *Page) Attributes() map[string]string {
	attrs := make(map[string]string)
	if p.Infobox == nil {
		return attrs
	}
	for _, f := range p.Infobox.Fields {
		label := util.CleanDisplayText(f.Label)
		if value := util.CleanDisplayText(f.Value); label != "" && value != "" {
			attrs[label] = value
		}
	}
	if name := util.CleanDisplayText(p.Infobox.Name); name != "" {
		attrs["name"] = name
	}
	if p.Infobox.ImageURL != "" {
		attrs["image_url"] = p.Infobox.ImageURL
	}
	return attrs
}

// ParsePage parses article HTML. pageURL is optional and only used for the
// readable summary.
func ParsePage(body []byte, pageURL *url.URL) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &Page{}
	if pageURL != nil {
		page.URL = pageURL.String()
	}
	page.Infobox = parseInfobox(doc)
	page.Categories = parseCategories(doc)

	if h := selHeader.MatchFirst(doc); h != nil {
		page.Title = textOf(h)
	} else if t := selDocTitle.MatchFirst(doc); t != nil {
		page.Title = textOf(t)
	}
	if l := selCanonical.MatchFirst(doc); l != nil {
		page.canonicalHint = attr(l, "href")
	}

	if content := selContent.MatchFirst(doc); content != nil {
		page.Sections = parseSections(content)
		for _, p := range selParagraph.MatchAll(content) {
			page.Paragraphs = append(page.Paragraphs, blockOf(p))
		}
	}
	page.Text = textOf(doc)

	if pageURL != nil {
		if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
			var builder strings.Builder
			if err := article.RenderText(&builder); err == nil {
				page.Summary = collapseSpace(builder.String())
			}
		}
	}

	return page, nil
}

func parseInfobox(doc *html.Node) *Infobox {
	box := selInfobox.MatchFirst(doc)
	if box == nil {
		return nil
	}

	info := &Infobox{Text: textOf(box)}
	if img := selInfoboxImage.MatchFirst(box); img != nil {
		info.ImageURL = imageSource(img)
		if i := strings.Index(info.ImageURL, "/revision/latest"); i >= 0 {
			info.ImageURL = info.ImageURL[:i]
		}
	}
	if info.ImageURL == "" {
		if img := selImage.MatchFirst(box); img != nil {
			info.ImageURL = imageSource(img)
		}
	}
	if strings.HasPrefix(info.ImageURL, "//") {
		info.ImageURL = "https:" + info.ImageURL
	}

	if title := selInfoboxTitle.MatchFirst(box); title != nil {
		info.Name = textOf(title)
	}

	for _, item := range selInfoboxItem.MatchAll(box) {
		label := selDataLabel.MatchFirst(item)
		value := selDataValue.MatchFirst(item)
		if label == nil || value == nil {
			continue
		}
		info.Fields = append(info.Fields, InfoboxField{
			Label: textOf(label),
			Value: textOf(value),
			Links: linksOf(value),
		})
	}

	return info
}

func imageSource(img *html.Node) string {
	src := attr(img, "src")
	if src == "" || strings.HasPrefix(src, "data:") {
		if lazy := attr(img, "data-src"); lazy != "" {
			return lazy
		}
	}
	return src
}

func parseCategories(doc *html.Node) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range selCategory.MatchAll(doc) {
		name := textOf(a)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func parseSections(content *html.Node) []Section {
	var sections []Section
	current := -1
	for child := content.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if heading, level := headingOf(child); heading != nil {
			sections = append(sections, Section{
				Level:   level,
				Heading: textOf(heading),
				Links:   linksOf(heading),
			})
			current = len(sections) - 1
			continue
		}
		if current >= 0 {
			sections[current].Blocks = append(sections[current].Blocks, blockOf(child))
		}
	}
	return sections
}

// headingOf recognizes bare h2/h3 elements and the div.mw-heading wrappers
// newer MediaWiki versions emit around them.
func headingOf(n *html.Node) (*html.Node, int) {
	switch n.DataAtom {
	case atom.H2:
		return n, 2
	case atom.H3:
		return n, 3
	case atom.Div:
		if !strings.Contains(attr(n, "class"), "mw-heading") {
			return nil, 0
		}
		if h := selHeading.MatchFirst(n); h != nil {
			if h.DataAtom == atom.H2 {
				return h, 2
			}
			return h, 3
		}
	}
	return nil, 0
}

func blockOf(n *html.Node) Block {
	return Block{
		Tag:   n.Data,
		Text:  textOf(n),
		Links: linksOf(n),
	}
}

func linksOf(n *html.Node) []Link {
	var links []Link
	for _, a := range selAnchor.MatchAll(n) {
		target, ok := LinkTarget(attr(a, "href"))
		if !ok {
			continue
		}
		links = append(links, Link{Target: target, Text: textOf(a)})
	}
	return links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf returns the visible text below n with whitespace collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Br:
				b.WriteByte(' ')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlockElement(n.DataAtom) {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return collapseSpace(b.String())
}

func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Tr, atom.Td, atom.Th, atom.H1, atom.H2,
		atom.H3, atom.H4, atom.Section, atom.Aside, atom.Figure, atom.Ul, atom.Ol, atom.Table:
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
