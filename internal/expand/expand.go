// Package expand widens short keywords into natural-language inclusion
// clauses used to strengthen a document's scope section. Results are memoized
// for the lifetime of the process.
package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pmajor/intake/internal/telemetry"
	"github.com/pmajor/intake/provider"
)

const maxAliases = 12

const expandInstruction = `You expand search keywords for formal information-access requests.
Given a term, return near-synonyms, alternate spellings, common abbreviations
and domain-specific aliases for it.

Respond ONLY with a JSON array of strings, for example:
["alias one", "alias two"]
Do not include the original term itself. Do not include any other text.`

// Expander memoizes keyword expansions produced by the completion service.
// The cache is process-lifetime and never evicted; two goroutines computing
// the same key concurrently is tolerated (last writer wins).
type Expander struct {
	llm    provider.Provider
	cache  *gocache.Cache
	logger *log.Logger
}

func New(llm provider.Provider, logger *log.Logger) *Expander {
	if logger == nil {
		logger = telemetry.NewLogger("EXPAND")
	}
	return &Expander{
		llm:    llm,
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger,
	}
}

// Expand turns a keyword into an inclusion clause. On any completion-service
// or parse failure it returns a generic fallback clause which is NOT cached,
// so a later successful call can still populate the cache.
func (e *Expander) Expand(ctx context.Context, term string) string {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return ""
	}
	if v, ok := e.cache.Get(key); ok {
		telemetry.ExpansionCacheHits.Inc()
		return v.(string)
	}
	telemetry.ExpansionCacheMisses.Inc()

	if e.llm == nil {
		return fallbackClause(term)
	}

	raw, err := e.llm.Complete(ctx, expandInstruction, term)
	if err != nil {
		telemetry.CompletionCalls.WithLabelValues("expand", "error").Inc()
		e.logger.Printf("expansion of %q failed: %v", term, err)
		return fallbackClause(term)
	}
	telemetry.CompletionCalls.WithLabelValues("expand", "ok").Inc()

	aliases := parseAliases(raw, term)
	if len(aliases) == 0 {
		return fallbackClause(term)
	}

	clause := fmt.Sprintf("include all references to %q, including %s", term, joinNatural(aliases))
	e.cache.Set(key, clause, gocache.NoExpiration)
	return clause
}

// ExpandAll expands each term independently, preserving order. There is no
// cross-term deduplication: one output per input.
func (e *Expander) ExpandAll(ctx context.Context, terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, e.Expand(ctx, t))
	}
	return out
}

func fallbackClause(term string) string {
	return fmt.Sprintf("include all references to %q, including abbreviations, acronyms and alternative spellings", term)
}

// parseAliases tolerates a raw JSON array, a JSON array buried in prose, or a
// plain comma/newline-separated list. The input term is dropped from the
// result and the list is capped.
func parseAliases(raw, term string) []string {
	text := stripFences(raw)

	items := tryJSONArray(text)
	if items == nil {
		if start := strings.Index(text, "["); start >= 0 {
			if end := strings.LastIndex(text, "]"); end > start {
				items = tryJSONArray(text[start : end+1])
			}
		}
	}
	if items == nil {
		items = splitPlain(text)
	}

	var out []string
	for _, item := range items {
		s := strings.TrimSpace(item)
		if s == "" || strings.EqualFold(s, strings.TrimSpace(term)) {
			continue
		}
		out = append(out, s)
		if len(out) >= maxAliases {
			break
		}
	}
	return out
}

func tryJSONArray(text string) []string {
	var arr []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &arr); err != nil {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func splitPlain(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		s := strings.Trim(strings.TrimSpace(f), `"'-• `)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
