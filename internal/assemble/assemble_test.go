package assemble

import (
	"strings"
	"testing"
)

func TestApplicationMandatorySectionsOnly(t *testing.T) {
	t.Parallel()
	fields := map[string]any{
		"agency":         "Department of Primary Industries",
		"applicant_name": "Ada Lovelace",
	}
	doc := Application(fields, nil)

	for _, want := range []string{"FORMAL ACCESS APPLICATION", "APPLICANT", "DECLARATION", "Ada Lovelace"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("mandatory content %q missing:\n%s", want, doc)
		}
	}
	for _, absent := range []string{"INFORMATION SOUGHT", "PROCESSING CHARGE REDUCTION", "LODGEMENT", "ADDITIONAL CONTEXT"} {
		if strings.Contains(doc, absent) {
			t.Fatalf("optional heading %q emitted without data:\n%s", absent, doc)
		}
	}
}

func TestApplicationRendersContext(t *testing.T) {
	t.Parallel()
	fields := map[string]any{
		"agency":         "DPI",
		"applicant_name": "Ada Lovelace",
	}

	without := Application(fields, nil)

	fields["context"] = "The request relates to the 2022 audit."
	with := Application(fields, nil)
	if with == without {
		t.Fatalf("context did not change the document")
	}
	if !strings.Contains(with, "ADDITIONAL CONTEXT") || !strings.Contains(with, "2022 audit") {
		t.Fatalf("context section missing:\n%s", with)
	}
	if strings.Index(with, "ADDITIONAL CONTEXT") > strings.Index(with, "DECLARATION") {
		t.Fatalf("context section should precede the declaration:\n%s", with)
	}
}

func TestApplicationFeeReductionConditional(t *testing.T) {
	t.Parallel()
	base := map[string]any{
		"agency":         "DPI",
		"applicant_name": "Ada Lovelace",
	}

	doc := Application(base, nil)
	if strings.Contains(doc, "PROCESSING CHARGE REDUCTION") {
		t.Fatalf("fee paragraph emitted without a category")
	}

	base["applicant_category"] = "corporate"
	doc = Application(base, nil)
	if strings.Contains(doc, "PROCESSING CHARGE REDUCTION") {
		t.Fatalf("fee paragraph emitted for non-qualifying category")
	}

	base["applicant_category"] = "Pensioner"
	doc = Application(base, nil)
	if !strings.Contains(doc, "PROCESSING CHARGE REDUCTION") || !strings.Contains(doc, "50%") {
		t.Fatalf("fee paragraph missing for qualifying category:\n%s", doc)
	}
}

func TestApplicationScopeWithExpansions(t *testing.T) {
	t.Parallel()
	fields := map[string]any{
		"agency":         "DPI",
		"applicant_name": "Ada Lovelace",
		"subject":        "All records about exploratory drilling approvals.",
		"keywords":       []any{"drilling", "groundwater"},
		"date_range":     "January 2023 to June 2024",
	}
	expansions := []string{`include all references to "drilling", including bore licence and well permit`}

	doc := Application(fields, expansions)
	if !strings.Contains(doc, "1. drilling") || !strings.Contains(doc, "2. groundwater") {
		t.Fatalf("keywords not numbered:\n%s", doc)
	}
	if !strings.Contains(doc, "bore licence") {
		t.Fatalf("expansion clause missing:\n%s", doc)
	}
	if !strings.Contains(doc, "Period covered: January 2023 to June 2024") {
		t.Fatalf("date range missing:\n%s", doc)
	}
}

func TestDossierSkipsEmptySections(t *testing.T) {
	t.Parallel()
	fields := map[string]any{"person": "Grace Hopper"}
	doc := DossierDocument(fields, Dossier{}, nil)

	if !strings.Contains(doc, "MEETING PREPARATION DOSSIER: Grace Hopper") {
		t.Fatalf("title missing:\n%s", doc)
	}
	for _, absent := range []string{"CAREER HIGHLIGHTS", "KNOWN ASSOCIATES", "CONVERSATION STARTERS", "RELATIONSHIP MAP", "STRATEGIC NOTES", "PROFILE"} {
		if strings.Contains(doc, absent) {
			t.Fatalf("empty section %q emitted:\n%s", absent, doc)
		}
	}
}

func TestDossierNumberingRestartsPerSection(t *testing.T) {
	t.Parallel()
	d := Dossier{
		CareerHighlights:     []string{"CTO at Initech", "Founded Hooli"},
		ConversationStarters: []string{"Recent keynote", "Shared alma mater", "New funding round"},
	}
	doc := DossierDocument(map[string]any{"person": "Jane Doe"}, d, nil)

	highlights := doc[strings.Index(doc, "CAREER HIGHLIGHTS"):]
	if !strings.Contains(highlights, "1. CTO at Initech") || !strings.Contains(highlights, "2. Founded Hooli") {
		t.Fatalf("highlights not numbered:\n%s", doc)
	}
	starters := doc[strings.Index(doc, "CONVERSATION STARTERS"):]
	if !strings.Contains(starters, "1. Recent keynote") {
		t.Fatalf("numbering did not restart per section:\n%s", doc)
	}
	if strings.Contains(starters, "3. New funding round") == false {
		t.Fatalf("starter list truncated:\n%s", doc)
	}
}

func TestDossierAssociatesRendering(t *testing.T) {
	t.Parallel()
	d := Dossier{
		KnownAssociates: []Associate{
			{Name: "Sam Chen", Role: "VP Engineering", Direction: "reports-to"},
			{Name: "", Role: "ignored"},
		},
	}
	doc := DossierDocument(map[string]any{"person": "Jane Doe"}, d, nil)
	if !strings.Contains(doc, "- Sam Chen, VP Engineering (reports-to)") {
		t.Fatalf("associate line malformed:\n%s", doc)
	}
	if strings.Contains(doc, "ignored") {
		t.Fatalf("nameless associate rendered:\n%s", doc)
	}
}

func TestNumberedListSkipsBlanks(t *testing.T) {
	t.Parallel()
	got := numberedList([]string{"a", "  ", "b"})
	if got != "1. a\n2. b" {
		t.Fatalf("numberedList = %q", got)
	}
}
