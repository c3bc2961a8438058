package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pmajor/intake/internal/schema"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func testSchema() *schema.Schema {
	return schema.New("test", []schema.Field{
		{Name: "agency", Question: "Which agency holds the information?", Priority: 1},
		{Name: "name", Question: "What is your full name?", Priority: 2},
		{Name: "email", Question: "What is the contact email for {agency}?", DependsOn: "agency"},
	})
}

func TestExtractMergesAndReportsMissing(t *testing.T) {
	llm := &stubLLM{reply: `{"extracted": {"agency": "DPI"}}`}
	e := New(llm, testSchema(), nil, nil, nil)

	merged, missing, complete := e.Extract(context.Background(), "I want documents from DPI", map[string]any{}, "")
	if merged["agency"] != "DPI" {
		t.Fatalf("agency not merged: %v", merged)
	}
	if complete {
		t.Fatalf("should not be complete yet")
	}
	want := []string{"What is your full name?", "What is the contact email for DPI?"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
}

func TestExtractNeverMutatesInput(t *testing.T) {
	llm := &stubLLM{reply: `{"extracted": {"agency": "DPI"}}`}
	e := New(llm, testSchema(), nil, nil, nil)

	current := map[string]any{"name": "Ada"}
	merged, _, _ := e.Extract(context.Background(), "msg", current, "")
	if _, ok := current["agency"]; ok {
		t.Fatalf("input map was mutated: %v", current)
	}
	if merged["name"] != "Ada" {
		t.Fatalf("existing fields lost: %v", merged)
	}
}

func TestExtractIdempotent(t *testing.T) {
	llm := &stubLLM{reply: `{"extracted": {"topics": ["a", "b"]}}`}
	e := New(llm, testSchema(), nil, nil, nil)

	cur := map[string]any{"agency": "DPI"}
	first, _, _ := e.Extract(context.Background(), "msg", cur, "")
	second, _, _ := e.Extract(context.Background(), "msg", cur, "")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extract not idempotent: %v vs %v", first, second)
	}
	if topics, ok := second["topics"].([]any); !ok || len(topics) != 2 {
		t.Fatalf("list field duplicated or lost: %v", second["topics"])
	}
}

func TestExtractSkipsEmptyValues(t *testing.T) {
	llm := &stubLLM{reply: `{"extracted": {"agency": "", "name": null, "email": []}}`}
	e := New(llm, testSchema(), nil, nil, nil)

	merged, _, _ := e.Extract(context.Background(), "msg", map[string]any{"agency": "DPI"}, "")
	if merged["agency"] != "DPI" {
		t.Fatalf("empty string overwrote existing value: %v", merged)
	}
	if _, ok := merged["name"]; ok {
		t.Fatalf("null value merged: %v", merged)
	}
	if _, ok := merged["email"]; ok {
		t.Fatalf("empty list merged: %v", merged)
	}
}

func TestExtractLastWriteWins(t *testing.T) {
	llm := &stubLLM{reply: `{"extracted": {"agency": "Transport"}}`}
	e := New(llm, testSchema(), nil, nil, nil)

	merged, _, _ := e.Extract(context.Background(), "actually Transport", map[string]any{"agency": "DPI"}, "")
	if merged["agency"] != "Transport" {
		t.Fatalf("later value should overwrite: %v", merged)
	}
}

func TestExtractWithoutProvider(t *testing.T) {
	e := New(nil, testSchema(), nil, nil, nil)

	cur := map[string]any{"agency": "DPI"}
	merged, missing, complete := e.Extract(context.Background(), "a long message full of details", cur, "")
	if !reflect.DeepEqual(merged, cur) {
		t.Fatalf("no-provider extract should return inputs unchanged: %v", merged)
	}
	if len(missing) == 0 || complete {
		t.Fatalf("expected missing questions without a provider")
	}
}

func TestExtractParseFailureDegrades(t *testing.T) {
	llm := &stubLLM{err: errors.New("upstream down")}
	e := New(llm, testSchema(), nil, nil, nil)

	merged, missing, _ := e.Extract(context.Background(), "msg", map[string]any{"agency": "DPI"}, "")
	if merged["agency"] != "DPI" || len(missing) == 0 {
		t.Fatalf("service failure should degrade to nothing learned: %v %v", merged, missing)
	}
}

func TestParseExtractionTiers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
	}{
		{"plain object", `{"extracted": {"agency": "DPI"}}`},
		{"fenced block", "Sure!\n```json\n{\"extracted\": {\"agency\": \"DPI\"}}\n```\nDone."},
		{"embedded in prose", `Here you go: {"extracted": {"agency": "DPI"}} hope that helps`},
		{"missing wrapper", `{"agency": "DPI"}`},
	}
	for _, c := range cases {
		got := ParseExtraction(c.raw)
		if got["agency"] != "DPI" {
			t.Fatalf("%s: ParseExtraction = %v", c.name, got)
		}
	}

	if got := ParseExtraction("no json here at all"); got != nil {
		t.Fatalf("total parse failure should yield nil, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	e := New(nil, testSchema(), []string{"agency", "name"}, map[string]string{
		"address": "no destination address provided",
	}, nil)

	valid, msgs := e.Validate(map[string]any{"agency": "DPI"})
	if valid {
		t.Fatalf("missing required field should invalidate")
	}
	found := false
	for _, m := range msgs {
		if m == `required field "name" is missing` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-name message, got %v", msgs)
	}

	valid, msgs = e.Validate(map[string]any{"agency": "DPI", "name": "Ada"})
	if !valid {
		t.Fatalf("warnings must not affect validity: %v", msgs)
	}
	if len(msgs) != 1 || msgs[0] != "no destination address provided" {
		t.Fatalf("expected address warning, got %v", msgs)
	}
}
