package schema

import (
	"strings"
	"testing"
)

func testSchema() *Schema {
	return New("test", []Field{
		{Name: "agency", Question: "Which agency holds the information?", Priority: 1},
		{Name: "name", Question: "What is your full name?", Priority: 2},
		{Name: "email", Question: "What is the contact email for {agency}?", DependsOn: "agency"},
	})
}

func TestMissingQuestionsEmptyFields(t *testing.T) {
	t.Parallel()
	qs := testSchema().MissingQuestions(map[string]any{})
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d: %v", len(qs), qs)
	}
	if qs[0] != "Which agency holds the information?" {
		t.Fatalf("unexpected first question: %q", qs[0])
	}
	if qs[1] != "What is your full name?" {
		t.Fatalf("unexpected second question: %q", qs[1])
	}
}

func TestConditionalActivatesWithSubstitution(t *testing.T) {
	t.Parallel()
	qs := testSchema().MissingQuestions(map[string]any{"agency": "DPI"})
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d: %v", len(qs), qs)
	}
	if qs[0] != "What is your full name?" {
		t.Fatalf("unexpected first question: %q", qs[0])
	}
	if !strings.Contains(qs[1], "DPI") {
		t.Fatalf("expected agency substituted into conditional question, got %q", qs[1])
	}
}

func TestConditionalSkippedWhenGoverningAbsent(t *testing.T) {
	t.Parallel()
	qs := testSchema().MissingQuestions(map[string]any{"name": "Ada Lovelace"})
	for _, q := range qs {
		if strings.Contains(q, "contact email") {
			t.Fatalf("conditional question emitted without governing field: %v", qs)
		}
	}
}

func TestAllowedValuesGateConditional(t *testing.T) {
	t.Parallel()
	s := New("fees", []Field{
		{Name: "category", Question: "What applicant category applies?", Priority: 1},
		{Name: "proof", Question: "What evidence supports the {category} category?", DependsOn: "category", AllowedValues: []string{"pensioner", "student"}},
	})

	qs := s.MissingQuestions(map[string]any{"category": "corporate"})
	if len(qs) != 0 {
		t.Fatalf("conditional should not activate for non-qualifying value: %v", qs)
	}

	qs = s.MissingQuestions(map[string]any{"category": "Pensioner"})
	if len(qs) != 1 || !strings.Contains(qs[0], "Pensioner") {
		t.Fatalf("conditional should activate case-insensitively, got %v", qs)
	}
}

func TestCompleteWhenAllPopulated(t *testing.T) {
	t.Parallel()
	fields := map[string]any{"agency": "DPI", "name": "Ada Lovelace", "email": "foi@dpi.gov"}
	if qs := testSchema().MissingQuestions(fields); len(qs) != 0 {
		t.Fatalf("expected no missing questions, got %v", qs)
	}
	// unrelated keys never change the result
	fields["unrelated"] = "x"
	if qs := testSchema().MissingQuestions(fields); len(qs) != 0 {
		t.Fatalf("unrelated field changed completeness: %v", qs)
	}
}

func TestEmptyValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		v     any
		empty bool
	}{
		{nil, true},
		{"", true},
		{"  ", true},
		{[]any{}, true},
		{[]string{}, true},
		{[]map[string]any{}, true},
		{"x", false},
		{[]any{"x"}, false},
		{42, false},
	}
	for _, c := range cases {
		if got := Empty(c.v); got != c.empty {
			t.Fatalf("Empty(%#v) = %v, want %v", c.v, got, c.empty)
		}
	}
}

func TestPriorityOrdersAlwaysFields(t *testing.T) {
	t.Parallel()
	s := New("ordered", []Field{
		{Name: "b", Question: "B?", Priority: 2},
		{Name: "a", Question: "A?", Priority: 1},
		{Name: "c", Question: "C?", Priority: 3},
	})
	qs := s.MissingQuestions(nil)
	want := []string{"A?", "B?", "C?"}
	for i := range want {
		if qs[i] != want[i] {
			t.Fatalf("question order %v, want %v", qs, want)
		}
	}
}

func TestDuplicateFieldPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate field name")
		}
	}()
	New("dup", []Field{{Name: "a", Question: "A?"}, {Name: "a", Question: "A again?"}})
}
