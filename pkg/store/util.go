package store

import "github.com/OFFIS-RIT/wikigraph/pkg/common"

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty and repeated values, keeping first occurrences.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CloneGraph returns a deep copy of g.
func CloneGraph(g *common.Graph) *common.Graph {
	out := &common.Graph{
		ID:       g.ID,
		Entities: make([]common.Entity, len(g.Entities)),
		Edges:    make([]common.Edge, len(g.Edges)),
	}
	for i, e := range g.Entities {
		if e.Attributes != nil {
			attrs := make(map[string]string, len(e.Attributes))
			for k, v := range e.Attributes {
				attrs[k] = v
			}
			e.Attributes = attrs
		}
		out.Entities[i] = e
	}
	for i, e := range g.Edges {
		e.Labels = append([]string(nil), e.Labels...)
		e.Evidence = append([]string(nil), e.Evidence...)
		out.Edges[i] = e
	}
	return out
}
