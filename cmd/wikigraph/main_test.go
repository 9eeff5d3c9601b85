package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/export"

	"github.com/spf13/cobra"
)

func formatCommand(t *testing.T, format string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("format", "", "")
	if format != "" {
		if err := cmd.Flags().Set("format", format); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return cmd
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		flag    string
		path    string
		want    export.Format
		wantErr bool
	}{
		{"", "graph.json", export.FormatNodes, false},
		{"", "out/graph.GML", export.FormatGML, false},
		{"entities", "graph.json", export.FormatEntities, false},
		{"svg", "graph.json", "", true},
	}
	for _, tt := range tests {
		got, err := outputFormat(formatCommand(t, tt.flag), tt.path)
		if (err != nil) != tt.wantErr {
			t.Fatalf("unexpected error for %q: %v", tt.flag, err)
		}
		if got != tt.want {
			t.Fatalf("unexpected format: got %s, want %s", got, tt.want)
		}
	}
}

func TestSiblingPath(t *testing.T) {
	if got := siblingPath("episodes/ep_2.json", ".gml"); got != "episodes/ep_2.gml" {
		t.Fatalf("unexpected path: got %s", got)
	}
	if got := siblingPath("graph", "_enriched.json"); got != "graph_enriched.json" {
		t.Fatalf("unexpected path: got %s", got)
	}
}

func TestRunConvert(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.json")
	doc := `{"nodes": [{"id": "bertrand", "label": "Bertrand Bell", "type": "character"},
{"id": "vaelus", "label": "Vaelus", "type": "character"}],
"edges": [{"source": "bertrand", "target": "vaelus", "relationship": "Ally"},
{"source": "bertrand", "target": "ghost", "relationship": "Enemy"}]}`
	if err := os.WriteFile(input, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runConvert(formatCommand(t, ""), []string{input}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(dir, "episode.gml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gml := string(out)
	if !strings.Contains(gml, `label "Bertrand Bell"`) || strings.Contains(gml, "ghost") {
		t.Fatalf("unexpected gml:\n%s", gml)
	}

	if err := os.WriteFile(input, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := runConvert(formatCommand(t, ""), []string{input}); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}
