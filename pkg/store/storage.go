package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

// ErrGraphNotFound is returned when no graph is stored under the given id.
var ErrGraphNotFound = errors.New("graph not found")

// StoredGraph is a finished crawl as it is persisted: the consolidated graph,
// the seeds it started from, the alias table it built and the crawl summary.
type StoredGraph struct {
	Graph   *common.Graph
	Seeds   []string
	Aliases map[string]string
	Summary json.RawMessage
}

// GraphInfo describes a stored graph without loading its contents.
type GraphInfo struct {
	ID        string          `json:"id"`
	Seeds     []string        `json:"seeds"`
	Entities  int             `json:"entities"`
	Edges     int             `json:"edges"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GraphStorage persists finished crawl graphs. Saving a graph under an
// existing id replaces it.
type GraphStorage interface {
	SaveGraph(ctx context.Context, graph StoredGraph) error
	GetGraph(ctx context.Context, id string) (*common.Graph, error)
	GetAliases(ctx context.Context, id string) (map[string]string, error)
	ListGraphs(ctx context.Context) ([]GraphInfo, error)
	DeleteGraph(ctx context.Context, id string) error
}
