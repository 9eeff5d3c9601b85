package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GMLOptions controls the header of a written GML document.
type GMLOptions struct {
	Creator string
	Comment string
}

// identKey carries the string node id through GML, whose node ids are
// integers.
const identKey = "ident"

var punctuation = map[rune]rune{
	'[':  '(',
	']':  ')',
	'"':  '\'',
	';':  ',',
	'|':  '/',
	'\\': '/',
	'‘':  '\'',
	'’':  '\'',
	'“':  '\'',
	'”':  '\'',
	'–':  '-',
	'—':  '-',
	'…':  '.',
}

func asciiTransformer() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if sub, ok := punctuation[r]; ok {
				return sub
			}
			switch {
			case r == '\n' || r == '\r' || r == '\t':
				return ' '
			case r < 0x20 || r == 0x7f:
				return -1
			case r > unicode.MaxASCII:
				return '?'
			}
			return r
		}),
		norm.NFC,
	)
}

// SanitizeASCII strips accents and replaces characters GML strings cannot
// carry.
func SanitizeASCII(s string) string {
	out, _, err := transform.String(asciiTransformer(), s)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return '?'
			}
			return r
		}, s)
	}
	return out
}

func gmlKey(k string) string {
	var b strings.Builder
	for _, r := range SanitizeASCII(k) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	key := b.String()
	if key == "" || !unicode.IsLetter(rune(key[0])) {
		key = "k" + key
	}
	return key
}

func gmlValue(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	}
	return strconv.Quote(SanitizeASCII(scalarString(v)))
}

func sortedAttrKeys(attrs map[string]any, skip ...string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		skipped := false
		for _, s := range skip {
			if k == s {
				skipped = true
				break
			}
		}
		if !skipped {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// WriteGML writes doc as a directed GML graph. Nodes are numbered from 1 in
// document order; edges with unknown endpoints are skipped.
func WriteGML(w io.Writer, doc *Document, opts GMLOptions) error {
	bw := bufio.NewWriter(w)
	creator := opts.Creator
	if creator == "" {
		creator = "wikigraph"
	}

	fmt.Fprintf(bw, "Creator %s\n", gmlValue(creator))
	bw.WriteString("graph [\n  directed 1\n")
	if opts.Comment != "" {
		fmt.Fprintf(bw, "  comment %s\n", gmlValue(opts.Comment))
	}

	ids := make(map[string]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		ids[n.ID] = i + 1
		bw.WriteString("  node [\n")
		fmt.Fprintf(bw, "    id %d\n", i+1)
		fmt.Fprintf(bw, "    label %s\n", gmlValue(n.Label))
		typ := n.Type
		if typ == "" {
			typ = "unknown"
		}
		fmt.Fprintf(bw, "    type %s\n", gmlValue(typ))
		fmt.Fprintf(bw, "    %s %s\n", identKey, gmlValue(n.ID))
		for _, k := range sortedAttrKeys(n.Attrs, identKey) {
			fmt.Fprintf(bw, "    %s %s\n", gmlKey(k), gmlValue(n.Attrs[k]))
		}
		bw.WriteString("  ]\n")
	}

	for _, e := range doc.Edges {
		source, okS := ids[e.Source]
		target, okT := ids[e.Target]
		if !okS || !okT {
			warnDangling(e)
			continue
		}
		bw.WriteString("  edge [\n")
		fmt.Fprintf(bw, "    source %d\n    target %d\n", source, target)
		fmt.Fprintf(bw, "    label %s\n", gmlValue(e.Relationship))
		for _, k := range sortedAttrKeys(e.Attrs, "label") {
			fmt.Fprintf(bw, "    %s %s\n", gmlKey(k), gmlValue(e.Attrs[k]))
		}
		bw.WriteString("  ]\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

type gmlTokenKind int

const (
	tokKey gmlTokenKind = iota
	tokString
	tokNumber
	tokOpen
	tokClose
)

type gmlToken struct {
	kind gmlTokenKind
	text string
}

type gmlPair struct {
	key   string
	value any // string, float64 or []gmlPair
}

func tokenizeGML(src string) ([]gmlToken, error) {
	var tokens []gmlToken
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '#':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '[':
			tokens = append(tokens, gmlToken{kind: tokOpen})
			i++
		case r == ']':
			tokens = append(tokens, gmlToken{kind: tokClose})
			i++
		case r == '"':
			var b strings.Builder
			i++
			for ; i < len(rs) && rs[i] != '"'; i++ {
				if rs[i] == '\\' && i+1 < len(rs) {
					i++
				}
				b.WriteRune(rs[i])
			}
			if i >= len(rs) {
				return nil, fmt.Errorf("unterminated string")
			}
			i++
			tokens = append(tokens, gmlToken{kind: tokString, text: b.String()})
		case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || strings.ContainsRune(".eE+-", rs[i])) {
				i++
			}
			tokens = append(tokens, gmlToken{kind: tokNumber, text: string(rs[start:i])})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			tokens = append(tokens, gmlToken{kind: tokKey, text: string(rs[start:i])})
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return tokens, nil
}

func parseGMLList(tokens []gmlToken, pos int, nested bool) ([]gmlPair, int, error) {
	var pairs []gmlPair
	for pos < len(tokens) {
		tok := tokens[pos]
		if tok.kind == tokClose {
			if !nested {
				return nil, pos, fmt.Errorf("unbalanced ]")
			}
			return pairs, pos + 1, nil
		}
		if tok.kind != tokKey {
			return nil, pos, fmt.Errorf("expected key, got %q", tok.text)
		}
		if pos+1 >= len(tokens) {
			return nil, pos, fmt.Errorf("missing value for %s", tok.text)
		}
		val := tokens[pos+1]
		switch val.kind {
		case tokString:
			pairs = append(pairs, gmlPair{tok.text, val.text})
			pos += 2
		case tokNumber:
			f, err := strconv.ParseFloat(val.text, 64)
			if err != nil {
				return nil, pos, fmt.Errorf("invalid number %q: %w", val.text, err)
			}
			pairs = append(pairs, gmlPair{tok.text, f})
			pos += 2
		case tokOpen:
			inner, next, err := parseGMLList(tokens, pos+2, true)
			if err != nil {
				return nil, next, err
			}
			pairs = append(pairs, gmlPair{tok.text, inner})
			pos = next
		default:
			return nil, pos, fmt.Errorf("unexpected value for %s", tok.text)
		}
	}
	if nested {
		return nil, pos, fmt.Errorf("missing ]")
	}
	return pairs, pos, nil
}

// ParseGML reads a GML graph into a node/edge document. Node ids come from
// the ident attribute written by WriteGML, falling back to the label.
// Nested attribute lists inside nodes and edges are ignored.
func ParseGML(r io.Reader) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	tokens, err := tokenizeGML(string(src))
	if err != nil {
		return nil, err
	}
	top, _, err := parseGMLList(tokens, 0, false)
	if err != nil {
		return nil, err
	}

	var body []gmlPair
	found := false
	for _, p := range top {
		if list, ok := p.value.([]gmlPair); ok && p.key == "graph" {
			body = list
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no graph block")
	}

	doc := &Document{}
	numeric := make(map[string]string)
	for _, p := range body {
		list, ok := p.value.([]gmlPair)
		if !ok {
			continue
		}
		switch p.key {
		case "node":
			n := Node{}
			var num string
			for _, kv := range list {
				if _, nested := kv.value.([]gmlPair); nested {
					continue
				}
				switch kv.key {
				case "id":
					num = scalarString(kv.value)
				case "label":
					n.Label = scalarString(kv.value)
				case "type":
					n.Type = scalarString(kv.value)
				case identKey:
					n.ID = scalarString(kv.value)
				default:
					n.SetAttr(kv.key, kv.value)
				}
			}
			if n.ID == "" {
				n.ID = n.Label
			}
			if n.ID == "" {
				n.ID = num
			}
			if n.Label == "" {
				n.Label = n.ID
			}
			if num != "" {
				numeric[num] = n.ID
			}
			doc.Nodes = append(doc.Nodes, n)
		case "edge":
			e := Edge{}
			for _, kv := range list {
				if _, nested := kv.value.([]gmlPair); nested {
					continue
				}
				switch kv.key {
				case "source":
					e.Source = scalarString(kv.value)
				case "target":
					e.Target = scalarString(kv.value)
				case "label":
					e.Relationship = scalarString(kv.value)
				default:
					if e.Attrs == nil {
						e.Attrs = make(map[string]any)
					}
					e.Attrs[kv.key] = kv.value
				}
			}
			doc.Edges = append(doc.Edges, e)
		}
	}

	// Unknown endpoints keep their number and are reported as dangling.
	for i := range doc.Edges {
		if id, ok := numeric[doc.Edges[i].Source]; ok {
			doc.Edges[i].Source = id
		}
		if id, ok := numeric[doc.Edges[i].Target]; ok {
			doc.Edges[i].Target = id
		}
	}
	return doc, nil
}
