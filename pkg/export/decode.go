package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
)

var (
	// ErrMalformedInput is returned when a graph document matches none of
	// the known formats. It aborts the operation.
	ErrMalformedInput = errors.New("malformed graph input")
	// ErrDanglingEdge marks an edge whose endpoint is not a node. Such edges
	// are skipped with a warning.
	ErrDanglingEdge = errors.New("edge references unknown node")
)

// Format names a graph document format.
type Format string

const (
	FormatNodes    Format = "nodes"
	FormatEntities Format = "entities"
	FormatGML      Format = "gml"
)

// FormatFromPath picks the output format from a file extension. JSON files
// get the node/edge form.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".gml") {
		return FormatGML
	}
	return FormatNodes
}

func warnDangling(e Edge) {
	logger.Warn("[Export] Skipping edge", "source", e.Source, "target", e.Target, "err", ErrDanglingEdge)
}

// Decode reads a graph document in any known format: node/edge JSON,
// entity/relationship JSON or GML. Edges pointing at unknown nodes are
// dropped.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedInput)
	}

	var doc *Document
	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		switch {
		case probe["nodes"] != nil:
			doc = &Document{}
			if err := json.Unmarshal(trimmed, doc); err != nil {
				return nil, fmt.Errorf("%w: node document: %w", ErrMalformedInput, err)
			}
		case probe["entities"] != nil:
			var entities EntityDocument
			if err := json.Unmarshal(trimmed, &entities); err != nil {
				return nil, fmt.Errorf("%w: entity document: %w", ErrMalformedInput, err)
			}
			doc = entities.Document()
		default:
			return nil, fmt.Errorf("%w: neither nodes nor entities present", ErrMalformedInput)
		}
	} else {
		var err error
		doc, err = ParseGML(bytes.NewReader(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: gml: %w", ErrMalformedInput, err)
		}
	}

	doc.dropDangling()
	return doc, nil
}

func (d *Document) dropDangling() {
	ids := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		ids[n.ID] = struct{}{}
	}
	kept := d.Edges[:0]
	for _, e := range d.Edges {
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if !okS || !okT {
			warnDangling(e)
			continue
		}
		kept = append(kept, e)
	}
	d.Edges = kept
}

// Encode writes g in the requested format.
func Encode(w io.Writer, g *common.Graph, format Format) error {
	switch format {
	case FormatGML:
		return WriteGML(w, FromGraph(g), GMLOptions{Comment: "wikigraph " + g.ID})
	case FormatEntities:
		return writeJSON(w, EntitiesFromGraph(g))
	default:
		return writeJSON(w, FromGraph(g))
	}
}

// EncodeDocument writes an already built document.
func EncodeDocument(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatGML:
		return WriteGML(w, doc, GMLOptions{})
	case FormatEntities:
		return writeJSON(w, EntitiesFromGraph(doc.Graph("")))
	default:
		return writeJSON(w, doc)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
