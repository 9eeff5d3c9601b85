package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/pkoukk/tiktoken-go"
)

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// Example:
//
//	var result TypeJudgment
//	UnmarshalFlexible(`{"type": "npc", "confidence": 0.8}`, &result)   // standard JSON
//	UnmarshalFlexible(`"{\"type\": \"npc\"}"`, &result)                // double-encoded
//	UnmarshalFlexible("```json\n{type: 'npc'}\n```", &result)          // fenced and malformed
func UnmarshalFlexible(input string, out any) error {
	input = stripCodeFence(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}

// ParseRelationshipLabels extracts every taxonomy label mentioned in a free
// text answer. Labels are matched as substrings, with underscores or spaces.
// The result follows taxonomy order; an empty match yields associated_with.
func ParseRelationshipLabels(answer string, taxonomy []string, fallback string) []string {
	answer = strings.ToLower(answer)
	var found []string
	for _, label := range taxonomy {
		if strings.Contains(answer, label) || strings.Contains(answer, strings.ReplaceAll(label, "_", " ")) {
			found = append(found, label)
		}
	}
	if len(found) == 0 {
		return []string{fallback}
	}
	return found
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("o200k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens estimates the prompt size of text. Without a tokenizer the rune
// count is used, which never underestimates.
func CountTokens(text string) int {
	enc := loadEncoding()
	if enc == nil {
		return utf8.RuneCountInString(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// TruncateTokens shortens text to roughly max tokens.
func TruncateTokens(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	enc := loadEncoding()
	if enc == nil {
		runes := []rune(text)
		return string(runes[:max])
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= max {
		return text
	}
	return enc.Decode(tokens[:max])
}
