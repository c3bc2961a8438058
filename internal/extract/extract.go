// Package extract merges structured field values pulled out of free-form user
// messages into a session's accumulated data and reports what is still
// missing.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/pmajor/intake/internal/schema"
	"github.com/pmajor/intake/internal/telemetry"
	"github.com/pmajor/intake/provider"
)

const extractInstruction = `You extract structured fields from a user's message for a formal application.

RULES:
1. Only return fields you can confidently read from the message. Never infer or guess.
2. Omit any field the message does not clearly state.
3. Respond ONLY with valid JSON of the form:
{"extracted": {"field_name": "value"}}
Values may be strings, lists of strings, or lists of objects where the field calls for them.
Do not include any other text or explanation.`

// Engine turns user text into field updates via the completion service and
// recomputes the missing-question list against its schema.
//
// A nil provider is a supported configuration: extraction degrades to a
// no-op and the engine becomes a pure missing-field reporter.
type Engine struct {
	llm      provider.Provider
	schema   *schema.Schema
	required []string
	warnings map[string]string
	logger   *log.Logger
}

func New(llm provider.Provider, sch *schema.Schema, required []string, warnings map[string]string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = telemetry.NewLogger("EXTRACT")
	}
	return &Engine{llm: llm, schema: sch, required: required, warnings: warnings, logger: logger}
}

// Extract merges whatever the completion service confidently reads from the
// message into a copy of current, then recomputes the outstanding questions.
// Extraction failure of any kind degrades to "nothing new learned" and is
// never surfaced as an error.
func (e *Engine) Extract(ctx context.Context, message string, current map[string]any, priorContext string) (map[string]any, []string, bool) {
	merged := cloneFields(current)

	if e.llm != nil && strings.TrimSpace(message) != "" {
		extracted := e.callLLM(ctx, message, current, priorContext)
		for k, v := range extracted {
			if schema.Empty(v) {
				continue
			}
			merged[k] = v
		}
	}

	missing := e.schema.MissingQuestions(merged)
	return merged, missing, len(missing) == 0
}

func (e *Engine) callLLM(ctx context.Context, message string, current map[string]any, priorContext string) map[string]any {
	snapshot, _ := json.Marshal(current)
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "FIELDS TO COLLECT:\n")
	for _, f := range e.schema.Fields() {
		fmt.Fprintf(&prompt, "- %s: %s\n", f.Name, f.Question)
	}
	fmt.Fprintf(&prompt, "\nALREADY COLLECTED:\n%s\n", snapshot)
	if priorContext != "" {
		fmt.Fprintf(&prompt, "\nPRIOR CONTEXT:\n%s\n", priorContext)
	}
	fmt.Fprintf(&prompt, "\nUSER MESSAGE:\n%s\n", message)

	raw, err := e.llm.Complete(ctx, extractInstruction, prompt.String())
	if err != nil {
		telemetry.CompletionCalls.WithLabelValues("extract", "error").Inc()
		e.logger.Printf("extraction call failed: %v", err)
		return nil
	}
	telemetry.CompletionCalls.WithLabelValues("extract", "ok").Inc()
	return ParseExtraction(raw)
}

// ParseExtraction pulls the extracted-field object out of free-form
// completion text. It tries, in order: a fenced code block containing JSON,
// then the first top-level {...} span in the raw text. Total parse failure
// yields nil, never an error.
func ParseExtraction(raw string) map[string]any {
	candidates := []string{fencedBlock(raw), braceSpan(raw)}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err != nil {
			continue
		}
		if inner, ok := obj["extracted"].(map[string]any); ok {
			return inner
		}
		if _, exists := obj["extracted"]; exists {
			// present but not an object: treat as empty extraction
			return nil
		}
		return obj
	}
	return nil
}

func fencedBlock(raw string) string {
	start := strings.Index(raw, "```")
	if start < 0 {
		return ""
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && len(strings.TrimSpace(rest[:nl])) <= len("json") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

func braceSpan(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// Validate is the deterministic pre-generation check: it re-verifies the
// non-negotiable required fields without touching the completion service.
// Warning messages are appended but never affect validity.
func (e *Engine) Validate(fields map[string]any) (bool, []string) {
	var messages []string
	valid := true
	for _, name := range e.required {
		if schema.Empty(fields[name]) {
			f, _ := e.schema.Field(name)
			label := f.Name
			if label == "" {
				label = name
			}
			messages = append(messages, fmt.Sprintf("required field %q is missing", label))
			valid = false
		}
	}

	warnFields := make([]string, 0, len(e.warnings))
	for name := range e.warnings {
		warnFields = append(warnFields, name)
	}
	sort.Strings(warnFields)
	for _, name := range warnFields {
		if schema.Empty(fields[name]) {
			messages = append(messages, e.warnings[name])
		}
	}
	return valid, messages
}

func cloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
