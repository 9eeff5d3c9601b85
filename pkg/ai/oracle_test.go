package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeGenerator struct {
	text      string
	structure string
	err       error
	prompts   []string
	opts      []GenerateOptions
}

func (f *fakeGenerator) GenerateCompletion(_ context.Context, prompt string, opts ...GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	f.opts = append(f.opts, o)
	return f.text, f.err
}

func (f *fakeGenerator) GenerateCompletionWithFormat(_ context.Context, _, _ string, prompt string, out any, _ ...GenerateOption) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	return UnmarshalFlexible(f.structure, out)
}

func (f *fakeGenerator) ResetMetrics()            {}
func (f *fakeGenerator) GetMetrics() ModelMetrics { return ModelMetrics{} }

func TestOracleClassifyRelationship(t *testing.T) {
	gen := &fakeGenerator{text: "Close Friend, ally"}
	oracle := NewOracle(NewOracleParams{Generator: gen})

	req := RelationshipRequest{Source: "Thimble", Target: "Azune Nayar", Text: "They are close friends."}
	got := oracle.ClassifyRelationship(context.Background(), req)
	want := []string{"close_friend", "ally"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected labels: got %v, want %v", got, want)
	}

	again := oracle.ClassifyRelationship(context.Background(), req)
	if !reflect.DeepEqual(again, want) {
		t.Fatalf("cached labels differ: %v", again)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(gen.prompts))
	}
	if gen.opts[0].Temperature != 0.1 || gen.opts[0].MaxTokens != 50 {
		t.Fatalf("unexpected options %+v", gen.opts[0])
	}
	if stats := oracle.Stats(); stats.CacheHits != 1 || stats.Calls != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOracleClassifyRelationshipTruncatesText(t *testing.T) {
	gen := &fakeGenerator{text: "enemy"}
	oracle := NewOracle(NewOracleParams{Generator: gen})

	long := strings.Repeat("a", 2000)
	oracle.ClassifyRelationship(context.Background(), RelationshipRequest{Source: "A", Target: "B", Text: long})
	if strings.Contains(gen.prompts[0], strings.Repeat("a", 1501)) {
		t.Fatalf("relationship text was not truncated")
	}
	if !strings.Contains(gen.prompts[0], strings.Repeat("a", 1500)+"...") {
		t.Fatalf("expected truncation marker in prompt")
	}
}

func TestOracleNeutralDefaults(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	oracle := NewOracle(NewOracleParams{Generator: gen, MaxRetries: 2})
	ctx := context.Background()

	if got := oracle.ClassifyRelationship(ctx, RelationshipRequest{Source: "A", Target: "B", Text: "x"}); !reflect.DeepEqual(got, []string{"associated_with"}) {
		t.Fatalf("expected associated_with, got %v", got)
	}
	if got := oracle.ClassifyType(ctx, TypeRequest{Title: "X"}); got.Type != "unknown" || got.Confidence != 0 {
		t.Fatalf("expected unknown/0, got %+v", got)
	}
	if _, ok := oracle.JudgeMatch(ctx, MatchRequest{Identity: "X"}); ok {
		t.Fatalf("expected failed match judgment")
	}
	if _, ok := oracle.JudgeContext(ctx, ContextRequest{Title: "X"}); ok {
		t.Fatalf("expected failed context judgment")
	}
	if stats := oracle.Stats(); stats.Failures != 4 {
		t.Fatalf("expected 4 failures, got %d", stats.Failures)
	}
	if len(gen.prompts) != 8 {
		t.Fatalf("expected every call retried twice, got %d prompts", len(gen.prompts))
	}
}

func TestOracleClassifyType(t *testing.T) {
	tests := []struct {
		name      string
		structure string
		want      TypeJudgment
	}{
		{name: "valid", structure: `{"type":"organization","confidence":0.7}`, want: TypeJudgment{Type: "faction", Confidence: 0.7}},
		{name: "clamped", structure: `{"type":"npc","confidence":3}`, want: TypeJudgment{Type: "npc", Confidence: 1}},
		{name: "not allowed", structure: `{"type":"spaceship","confidence":0.9}`, want: TypeJudgment{Type: "unknown"}},
		{name: "garbage", structure: `lol`, want: TypeJudgment{Type: "unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := NewOracle(NewOracleParams{Generator: &fakeGenerator{structure: tt.structure}})
			got := oracle.ClassifyType(context.Background(), TypeRequest{Title: "Penteveral"})
			if got != tt.want {
				t.Fatalf("unexpected judgment: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOracleJudgeMatch(t *testing.T) {
	gen := &fakeGenerator{structure: `{"is_match": true, "confidence": 0.9, "reason": "same"}`}
	oracle := NewOracle(NewOracleParams{Generator: gen})
	got, ok := oracle.JudgeMatch(context.Background(), MatchRequest{
		Identity: "Shadia Fang", ExpectedType: "character", Candidate: "Shadia", TargetContext: 4,
	})
	if !ok || !got.IsMatch || got.Confidence != 0.9 {
		t.Fatalf("unexpected judgment %+v (ok=%v)", got, ok)
	}
	if !strings.Contains(gen.prompts[0], "campaign: 4") {
		t.Fatalf("expected campaign in prompt: %s", gen.prompts[0])
	}
}

func TestNeutralOracle(t *testing.T) {
	var o ClassificationOracle = NeutralOracle{}
	if got := o.ClassifyRelationship(context.Background(), RelationshipRequest{}); got[0] != "associated_with" {
		t.Fatalf("unexpected labels %v", got)
	}
}

func TestOracleReset(t *testing.T) {
	gen := &fakeGenerator{text: "ally"}
	oracle := NewOracle(NewOracleParams{Generator: gen})
	req := RelationshipRequest{Source: "Thimble", Target: "Azune Nayar", Text: "Allies since the fall."}

	oracle.ClassifyRelationship(context.Background(), req)
	oracle.ClassifyRelationship(context.Background(), req)
	if stats := oracle.Stats(); stats.CacheHits != 1 {
		t.Fatalf("unexpected cache hits: got %d, want 1", stats.CacheHits)
	}

	oracle.Reset()
	if stats := oracle.Stats(); stats.Calls != 0 || stats.CacheHits != 0 {
		t.Fatalf("unexpected stats after reset: %+v", stats)
	}
	oracle.ClassifyRelationship(context.Background(), req)
	if len(gen.prompts) != 2 {
		t.Fatalf("expected the cache to be cleared, got %d generator calls", len(gen.prompts))
	}
}
