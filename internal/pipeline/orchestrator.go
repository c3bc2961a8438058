// Package pipeline drives each session through its agent's clarification and
// generation state machine: collect fields from user messages, and once
// complete, run the ordered generation stages to a final document.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pmajor/intake/config"
	"github.com/pmajor/intake/internal/expand"
	"github.com/pmajor/intake/internal/extract"
	"github.com/pmajor/intake/internal/session"
	"github.com/pmajor/intake/internal/telemetry"
	"github.com/pmajor/intake/provider"
	"github.com/pmajor/intake/tools/web_search"
	"github.com/pmajor/intake/utils"
)

// Reply is what every orchestrator operation hands back to the caller. The
// Message text and Missing ordering are the conversational surface: the first
// missing question is the next thing to ask the user.
type Reply struct {
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Status    session.Status `json:"status"`
	Message   string         `json:"message"`
	Missing   []string       `json:"missing,omitempty"`
	Document  string         `json:"document,omitempty"`
}

// Orchestrator owns the session store and runs each agent's pipeline. All
// mutations of one session are serialized through a per-id lock; sessions
// never block each other.
type Orchestrator struct {
	store    session.Store
	locks    *session.KeyedMutex
	llm      provider.Provider
	searcher web_search.Searcher
	expander *expand.Expander
	engines  map[string]*extract.Engine
	logger   *log.Logger
	maxHits  int
}

// NewOrchestrator wires the agents. llm may be nil (unconfigured completion
// service); every stage has a defined degraded path.
func NewOrchestrator(cfg *config.Config, store session.Store, llm provider.Provider, searcher web_search.Searcher, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewLogger("PIPE")
	}
	maxHits := cfg.Search.MaxHits
	if maxHits <= 0 {
		maxHits = 8
	}
	return &Orchestrator{
		store:    store,
		locks:    session.NewKeyedMutex(),
		llm:      llm,
		searcher: searcher,
		expander: expand.New(llm, telemetry.NewLogger("EXPAND")),
		engines: map[string]*extract.Engine{
			AgentApplication: extract.New(llm, applicationSchema(), applicationRequired, applicationWarnings, telemetry.NewLogger("EXTRACT")),
			AgentDossier:     extract.New(llm, dossierSchema(), dossierRequired, dossierWarnings, telemetry.NewLogger("EXTRACT")),
		},
		logger:  logger,
		maxHits: maxHits,
	}
}

// Start creates (or overwrites) a session for the given agent and returns the
// first questions to ask.
func (o *Orchestrator) Start(ctx context.Context, agent, id, initialContext string) (Reply, error) {
	engine, ok := o.engines[agent]
	if !ok {
		return Reply{}, fmt.Errorf("unknown agent %q", agent)
	}
	unlock := o.locks.Lock(id)
	defer unlock()

	fields := map[string]any{}
	if strings.TrimSpace(initialContext) != "" {
		fields[ContextField] = initialContext
	}
	rec, err := o.store.Create(ctx, &session.Record{
		ID:     id,
		Agent:  agent,
		Fields: fields,
		Status: session.StatusCollecting,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("creating session: %w", err)
	}
	telemetry.SessionsCreated.WithLabelValues(agent).Inc()

	_, missing, complete := engine.Extract(ctx, "", rec.Fields, "")
	if complete {
		rec.Status = session.StatusReady
		if err := o.store.Update(ctx, rec); err != nil {
			return Reply{}, err
		}
	}
	return o.reply(rec, missing), nil
}

// Message feeds one user message through the extraction engine and advances
// the session toward ready.
func (o *Orchestrator) Message(ctx context.Context, id, text string) (Reply, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}

	switch rec.Status {
	case session.StatusGenerated:
		r := o.reply(rec, nil)
		r.Message = "The document has already been generated. Use refresh to add context and regenerate."
		return r, nil
	case session.StatusError:
		r := o.reply(rec, nil)
		r.Message = "Generation previously failed for this session: " + rec.Document
		return r, nil
	}

	engine := o.engines[rec.Agent]
	if engine == nil {
		return Reply{}, fmt.Errorf("session %s references unknown agent %q", id, rec.Agent)
	}
	telemetry.MessagesProcessed.WithLabelValues(rec.Agent).Inc()

	merged, missing, complete := engine.Extract(ctx, text, rec.Fields, utils.Str(rec.Fields[ContextField]))
	rec.Fields = merged
	if complete {
		rec.Status = session.StatusReady
	} else {
		rec.Status = session.StatusCollecting
	}
	if err := o.store.Update(ctx, rec); err != nil {
		return Reply{}, err
	}
	return o.reply(rec, missing), nil
}

// Generate validates the collected fields and, when they hold up, drives the
// agent's pipeline stages to a finished document. Stage failures surface as
// the diagnostic message with the session visibly in the error state, never
// as a raised fault.
func (o *Orchestrator) Generate(ctx context.Context, id string) (Reply, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if rec.Status == session.StatusGenerated {
		r := o.reply(rec, nil)
		r.Message = "The document has already been generated."
		return r, nil
	}
	if rec.Status == session.StatusError {
		r := o.reply(rec, nil)
		r.Message = "Generation previously failed for this session: " + rec.Document
		return r, nil
	}

	engine := o.engines[rec.Agent]
	if engine == nil {
		return Reply{}, fmt.Errorf("session %s references unknown agent %q", id, rec.Agent)
	}
	valid, msgs := engine.Validate(rec.Fields)
	if !valid {
		r := o.reply(rec, msgs)
		r.Message = "The application is not ready to generate: " + strings.Join(msgs, "; ")
		return r, nil
	}
	if len(msgs) > 0 {
		o.logger.Printf("session %s: validation warnings: %s", id, strings.Join(msgs, "; "))
	}

	var diag string
	switch rec.Agent {
	case AgentDossier:
		diag = o.generateDossier(ctx, rec)
	default:
		diag = o.generateApplication(ctx, rec)
	}
	if diag != "" {
		r := o.reply(rec, nil)
		r.Message = diag
		return r, nil
	}

	rec.Status = session.StatusGenerated
	if err := o.store.Update(ctx, rec); err != nil {
		return Reply{}, err
	}
	r := o.reply(rec, nil)
	r.Message = "Document generated."
	return r, nil
}

// Refresh adds context to a generated session and re-runs the later
// analysis/assembly stages only. On failure the stored session is left
// exactly as it was and the caller gets an update-failure message.
func (o *Orchestrator) Refresh(ctx context.Context, id, extraContext string) (Reply, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if rec.Status != session.StatusGenerated {
		r := o.reply(rec, nil)
		r.Message = "Only a generated session can be refreshed with additional context."
		return r, nil
	}

	work := rec.Clone()
	prior := utils.Str(work.Fields[ContextField])
	if prior != "" {
		work.Fields[ContextField] = prior + "\n" + extraContext
	} else {
		work.Fields[ContextField] = extraContext
	}

	var stageErr error
	switch work.Agent {
	case AgentDossier:
		stageErr = o.analyzeDossier(ctx, work)
	default:
		stageErr = o.assembleApplication(ctx, work)
	}
	if stageErr != nil {
		o.logger.Printf("session %s: refresh failed: %v", id, stageErr)
		r := o.reply(rec, nil)
		r.Message = fmt.Sprintf("Update failed, the previous document is unchanged: %v", stageErr)
		return r, nil
	}

	work.Status = session.StatusGenerated
	if err := o.store.Update(ctx, work); err != nil {
		return Reply{}, err
	}
	r := o.reply(work, nil)
	r.Message = "Document regenerated with the additional context."
	return r, nil
}

// Status reports a session without mutating anything but its access time.
func (o *Orchestrator) Status(ctx context.Context, id string) (Reply, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	var missing []string
	if rec.Status == session.StatusCollecting {
		if engine := o.engines[rec.Agent]; engine != nil {
			_, missing, _ = engine.Extract(ctx, "", rec.Fields, "")
		}
	}
	return o.reply(rec, missing), nil
}

// Delete removes a session.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	unlock := o.locks.Lock(id)
	defer unlock()
	return o.store.Delete(ctx, id)
}

// runStage records the stage as the session status BEFORE invoking fn, so an
// observer never sees a half-applied stage: either fn's mutations are fully
// persisted or the session is visibly in the error state carrying the
// diagnostic.
func (o *Orchestrator) runStage(ctx context.Context, rec *session.Record, stage session.Status, fn func(context.Context, *session.Record) error) string {
	rec.Status = stage
	if err := o.store.Update(ctx, rec); err != nil {
		return fmt.Sprintf("stage %s could not start: %v", stage, err)
	}

	start := time.Now()
	err := fn(ctx, rec)
	telemetry.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.StageRuns.WithLabelValues(string(stage), "error").Inc()
		diag := fmt.Sprintf("stage %s failed: %v", stage, err)
		rec.Status = session.StatusError
		rec.Document = diag
		if uerr := o.store.Update(ctx, rec); uerr != nil {
			o.logger.Printf("session %s: recording stage failure failed too: %v", rec.ID, uerr)
		}
		o.logger.Printf("session %s: %s", rec.ID, diag)
		return diag
	}

	telemetry.StageRuns.WithLabelValues(string(stage), "ok").Inc()
	if err := o.store.Update(ctx, rec); err != nil {
		return fmt.Sprintf("stage %s output could not be recorded: %v", stage, err)
	}
	return ""
}

func (o *Orchestrator) reply(rec *session.Record, missing []string) Reply {
	r := Reply{
		SessionID: rec.ID,
		Agent:     rec.Agent,
		Status:    rec.Status,
		Missing:   missing,
		Document:  rec.Document,
	}
	if len(missing) > 0 {
		r.Message = missing[0]
	} else if rec.Status == session.StatusReady {
		r.Message = readyNotice(rec.Agent)
	}
	return r
}
