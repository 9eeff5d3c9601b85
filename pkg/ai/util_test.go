package ai

import (
	"reflect"
	"testing"
)

func TestUnmarshalFlexible_JudgmentVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  MatchJudgment
	}{
		{
			name:  "valid json object",
			input: `{"is_match":true,"confidence":0.8,"reason":"same person"}`,
			want:  MatchJudgment{IsMatch: true, Confidence: 0.8, Reason: "same person"},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{is_match: false, confidence: 0.2, reason: 'namesake'}`,
			want:  MatchJudgment{Confidence: 0.2, Reason: "namesake"},
		},
		{
			name:  "trailing comma",
			input: `{"is_match":true,"confidence":1,}`,
			want:  MatchJudgment{IsMatch: true, Confidence: 1},
		},
		{
			name:  "missing end bracket",
			input: `{"is_match":true,"reason":"x`,
			want:  MatchJudgment{IsMatch: true, Reason: "x"},
		},
		{
			name:  "stringified",
			input: `"{\"is_match\": true, \"confidence\": 0.5}"`,
			want:  MatchJudgment{IsMatch: true, Confidence: 0.5},
		},
		{
			name:  "code fence",
			input: "```json\n{\"is_match\": true, \"confidence\": 0.9}\n```",
			want:  MatchJudgment{IsMatch: true, Confidence: 0.9},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"reason\": \"dup\"\n}\n",
			want:  MatchJudgment{Reason: "dup"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got MatchJudgment
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got TypeJudgment
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(&TypeJudgment{})
	if schema == nil {
		t.Fatalf("expected a schema")
	}
}

func TestParseRelationshipLabels(t *testing.T) {
	taxonomy := []string{"family", "romantic_partner", "close_friend", "ally", "enemy", "rival"}
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{name: "comma separated", answer: "close_friend,ally", want: []string{"close_friend", "ally"}},
		{name: "spaces instead of underscores", answer: "Romantic Partner", want: []string{"romantic_partner"}},
		{name: "taxonomy order", answer: "enemy, family", want: []string{"family", "enemy"}},
		{name: "nothing usable", answer: "they met once", want: []string{"associated_with"}},
		{name: "empty", answer: "", want: []string{"associated_with"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRelationshipLabels(tt.answer, taxonomy, "associated_with")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected labels: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncateTokensShortText(t *testing.T) {
	if got := TruncateTokens("short text", 100); got != "short text" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	if got := TruncateTokens("anything", 0); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
