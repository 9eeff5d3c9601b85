package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

func sampleGraph() *common.Graph {
	return &common.Graph{
		ID: "exandria",
		Entities: []common.Entity{
			{ID: "Azune_Nayar", Name: "Azune Nayar", Type: common.EntityTypeNPC},
			{ID: "Thimble", Name: "Thimble", Type: common.EntityTypePlayerCharacter, Attributes: map[string]string{"Race": "Pixie"}},
		},
		Edges: []common.Edge{
			{Source: "Thimble", Target: "Azune_Nayar", Kind: common.KindAlly, Labels: []string{"ally"}},
		},
	}
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	g := sampleGraph()
	err := s.SaveGraph(ctx, StoredGraph{
		Graph:   g,
		Seeds:   []string{"Thimble"},
		Aliases: map[string]string{"Azune": "Azune_Nayar"},
		Summary: json.RawMessage(`{"entities":2}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// later mutations of the saved graph must not leak into the store
	g.Entities[1].Attributes["Race"] = "Gnome"

	got, err := s.GetGraph(ctx, "exandria")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, sampleGraph()) {
		t.Fatalf("unexpected graph: got %+v, want %+v", got, sampleGraph())
	}

	aliases, err := s.GetAliases(ctx, "exandria")
	if err != nil || aliases["Azune"] != "Azune_Nayar" {
		t.Fatalf("unexpected aliases: got %v (%v)", aliases, err)
	}

	infos, err := s.ListGraphs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 || infos[0].Entities != 2 || infos[0].Edges != 1 || infos[0].Seeds[0] != "Thimble" {
		t.Fatalf("unexpected infos: got %+v", infos)
	}

	if err := s.DeleteGraph(ctx, "exandria"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetGraph(ctx, "exandria"); !errors.Is(err, ErrGraphNotFound) {
		t.Fatalf("unexpected error: got %v, want %v", err, ErrGraphNotFound)
	}
	if err := s.DeleteGraph(ctx, "exandria"); !errors.Is(err, ErrGraphNotFound) {
		t.Fatalf("unexpected error: got %v, want %v", err, ErrGraphNotFound)
	}
}

func TestMemoryStorageRejectsEmptyID(t *testing.T) {
	if err := NewMemoryStorage().SaveGraph(context.Background(), StoredGraph{Graph: &common.Graph{}}); err == nil {
		t.Fatalf("expected error for empty graph id")
	}
}

func TestChunkRange(t *testing.T) {
	tests := []struct {
		total, size int
		want        [][2]int
	}{
		{0, 3, nil},
		{5, 2, [][2]int{{0, 2}, {2, 4}, {4, 5}}},
		{3, 0, [][2]int{{0, 3}}},
		{4, 4, [][2]int{{0, 4}}},
	}
	for _, tt := range tests {
		var got [][2]int
		_ = ChunkRange(tt.total, tt.size, func(start, end int) error {
			got = append(got, [2]int{start, end})
			return nil
		})
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("unexpected chunks for %d/%d: got %v, want %v", tt.total, tt.size, got, tt.want)
		}
	}
}
