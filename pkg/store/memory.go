package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

type memoryEntry struct {
	stored    StoredGraph
	updatedAt time.Time
}

// MemoryStorage keeps graphs in process. It backs the CLI server when no
// database is configured.
type MemoryStorage struct {
	mu     sync.RWMutex
	graphs map[string]memoryEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{graphs: make(map[string]memoryEntry)}
}

func (m *MemoryStorage) SaveGraph(ctx context.Context, graph StoredGraph) error {
	if graph.Graph == nil || graph.Graph.ID == "" {
		return fmt.Errorf("graph id is empty")
	}
	aliases := make(map[string]string, len(graph.Aliases))
	for k, v := range graph.Aliases {
		aliases[k] = v
	}
	stored := StoredGraph{
		Graph:   CloneGraph(graph.Graph),
		Seeds:   append([]string(nil), graph.Seeds...),
		Aliases: aliases,
		Summary: append([]byte(nil), graph.Summary...),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graph.Graph.ID] = memoryEntry{stored: stored, updatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStorage) GetGraph(ctx context.Context, id string) (*common.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return CloneGraph(entry.stored.Graph), nil
}

func (m *MemoryStorage) GetAliases(ctx context.Context, id string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	out := make(map[string]string, len(entry.stored.Aliases))
	for k, v := range entry.stored.Aliases {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStorage) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]GraphInfo, 0, len(m.graphs))
	for id, entry := range m.graphs {
		infos = append(infos, GraphInfo{
			ID:        id,
			Seeds:     append([]string(nil), entry.stored.Seeds...),
			Entities:  len(entry.stored.Graph.Entities),
			Edges:     len(entry.stored.Graph.Edges),
			Summary:   entry.stored.Summary,
			UpdatedAt: entry.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (m *MemoryStorage) DeleteGraph(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	delete(m.graphs, id)
	return nil
}
