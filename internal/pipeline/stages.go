package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmajor/intake/internal/assemble"
	"github.com/pmajor/intake/internal/extract"
	"github.com/pmajor/intake/internal/session"
	"github.com/pmajor/intake/internal/telemetry"
	"github.com/pmajor/intake/tools/web_search/models"
	"github.com/pmajor/intake/utils"
)

const analysisInstruction = `You prepare meeting dossiers. Using the subject's details, the caller's
context and the collected research, synthesize a factual dossier and derive
strategic notes for the meeting.

RULES:
1. Only state facts supported by the research or the caller's context.
2. Keep every list item to one sentence.
3. Respond ONLY with valid JSON of the form:
{
  "dossier": {
    "summary": "two or three sentences about the person",
    "career_highlights": ["..."],
    "known_associates": [{"name": "...", "role": "...", "direction": "..."}],
    "conversation_starters": ["..."],
    "relationship_map": ["..."]
  },
  "annotations": ["strategic note", "..."]
}
Do not include any other text.`

// generateApplication runs the application agent's single generation stage:
// expand the collected keywords and assemble the document.
func (o *Orchestrator) generateApplication(ctx context.Context, rec *session.Record) string {
	return o.runStage(ctx, rec, session.StatusGenerating, o.assembleApplication)
}

func (o *Orchestrator) assembleApplication(ctx context.Context, rec *session.Record) error {
	keywords := utils.StrList(rec.Fields["keywords"])
	expansions := o.expander.ExpandAll(ctx, keywords)
	if rec.Artifacts == nil {
		rec.Artifacts = map[string]any{}
	}
	rec.Artifacts["expansions"] = expansions
	rec.Document = assemble.Application(rec.Fields, expansions)
	return nil
}

// generateDossier runs the dossier agent's pipeline: collect external data,
// then synthesize, annotate and assemble.
func (o *Orchestrator) generateDossier(ctx context.Context, rec *session.Record) string {
	if diag := o.runStage(ctx, rec, session.StatusResearching, o.researchDossier); diag != "" {
		return diag
	}
	return o.runStage(ctx, rec, session.StatusAnalyzing, o.analyzeDossier)
}

func (o *Orchestrator) researchDossier(ctx context.Context, rec *session.Record) error {
	person := utils.Str(rec.Fields["person"])
	company := utils.Str(rec.Fields["company"])

	queries := []string{
		strings.TrimSpace(fmt.Sprintf("%q %s", person, company)),
		fmt.Sprintf("%q career profile", person),
	}
	if company != "" {
		queries = append(queries, fmt.Sprintf("%s %s news", person, company))
	}

	seen := make(map[string]bool)
	var hits []models.Result
	for _, q := range queries {
		results, err := o.searcher.Search(ctx, q, o.maxHits)
		if err != nil {
			return fmt.Errorf("search %q: %w", q, err)
		}
		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			hits = append(hits, r)
		}
	}

	if rec.Artifacts == nil {
		rec.Artifacts = map[string]any{}
	}
	rec.Artifacts["research"] = hits
	return nil
}

// analyzeDossier synthesizes the structured dossier record and strategic
// annotations from the research, then assembles the final document. Without a
// completion provider it degrades to a research-only dossier.
func (o *Orchestrator) analyzeDossier(ctx context.Context, rec *session.Record) error {
	if rec.Artifacts == nil {
		rec.Artifacts = map[string]any{}
	}

	var dossier assemble.Dossier
	var annotations []string

	if o.llm == nil {
		dossier = fallbackDossier(rec)
	} else {
		raw, err := o.llm.Complete(ctx, analysisInstruction, analysisPrompt(rec))
		if err != nil {
			telemetry.CompletionCalls.WithLabelValues("analyze", "error").Inc()
			return fmt.Errorf("analysis call: %w", err)
		}
		telemetry.CompletionCalls.WithLabelValues("analyze", "ok").Inc()

		parsed := extract.ParseExtraction(raw)
		if parsed == nil {
			return fmt.Errorf("analysis response could not be parsed")
		}
		if d, ok := parsed["dossier"]; ok {
			buf, _ := json.Marshal(d)
			if err := json.Unmarshal(buf, &dossier); err != nil {
				return fmt.Errorf("decoding dossier record: %w", err)
			}
		}
		annotations = utils.StrList(parsed["annotations"])
	}

	rec.Artifacts["dossier"] = dossier
	rec.Artifacts["annotations"] = annotations
	rec.Document = assemble.DossierDocument(rec.Fields, dossier, annotations)
	return nil
}

func analysisPrompt(rec *session.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SUBJECT: %s\n", utils.Str(rec.Fields["person"]))
	if v := utils.Str(rec.Fields["company"]); v != "" {
		fmt.Fprintf(&b, "ORGANISATION: %s\n", v)
	}
	if v := utils.Str(rec.Fields["purpose"]); v != "" {
		fmt.Fprintf(&b, "MEETING PURPOSE: %s\n", v)
	}
	if v := utils.Str(rec.Fields[ContextField]); v != "" {
		fmt.Fprintf(&b, "\nCALLER CONTEXT:\n%s\n", v)
	}
	if research, ok := rec.Artifacts["research"]; ok {
		if raw, err := json.MarshalIndent(research, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nRESEARCH:\n%s\n", raw)
		}
	}
	return b.String()
}

// fallbackDossier is the degraded analysis used when no completion service is
// configured: research titles stand in for highlights, nothing is inferred.
func fallbackDossier(rec *session.Record) assemble.Dossier {
	d := assemble.Dossier{
		Summary: fmt.Sprintf("No analysis service is configured. The collected research on %s is listed below, unreviewed.",
			utils.Str(rec.Fields["person"])),
	}
	raw, err := json.Marshal(rec.Artifacts["research"])
	if err != nil {
		return d
	}
	var hits []models.Result
	if err := json.Unmarshal(raw, &hits); err != nil {
		return d
	}
	for _, h := range hits {
		line := h.Title
		if h.URL != "" {
			line += " (" + h.URL + ")"
		}
		if strings.TrimSpace(line) != "" {
			d.CareerHighlights = append(d.CareerHighlights, line)
		}
	}
	return d
}
