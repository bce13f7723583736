package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/ruler/internal/loader"
	"github.com/leapstack-labs/ruler/internal/state"
	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/resolve"
	"github.com/leapstack-labs/ruler/pkg/ruletree"
)

// Result is the outcome of one resolution run.
type Result struct {
	// Document is the rule document including synthesized rules.
	Document  *core.RuleDocument
	Catalog   *core.Catalog
	Model     *Model
	Decisions []core.Decision
	Messages  []core.Message
	Digest    string

	// Run is the recorded run, nil without a history store.
	Run *state.Run
	// Previous is the last completed run for the same inputs.
	Previous *state.Run
	// Idempotent is true when Previous produced the same decisions.
	Idempotent bool

	// Synthesized counts the rules created during the run.
	Synthesized int
	Duration    time.Duration
}

// HasErrors reports whether the run logged an error.
func (r *Result) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Severity == core.SeverityError {
			return true
		}
	}
	return false
}

// Omissions counts decisions that remove something from the model.
func (r *Result) Omissions() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Kind.IsOmission() {
			n++
		}
	}
	return n
}

// Summary is a one-line description of the run.
func (r *Result) Summary() string {
	var warnings, errs int
	for _, m := range r.Messages {
		switch m.Severity {
		case core.SeverityError:
			errs++
		case core.SeverityWarning:
			warnings++
		}
	}
	entities := 0
	if r.Model != nil {
		entities = len(r.Model.Entities)
	}
	return fmt.Sprintf("%d entities, %d decisions (%d omissions), %d synthesized rules, %d warnings, %d errors",
		entities, len(r.Decisions), r.Omissions(), r.Synthesized, warnings, errs)
}

// Run loads the inputs, resolves the catalog and records the run when a history
// store is configured. A run aborted by a structural invariant violation or a
// cancelled context is recorded as failed or cancelled and returns its error with
// the partial result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	doc, err := e.loadDocument()
	if err != nil {
		return nil, err
	}
	catalog, err := loader.LoadCatalog(e.catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	res := &Result{Catalog: catalog}
	r := resolve.New(doc,
		resolve.WithLogger(e.logger),
		resolve.WithSynthesisHook(func(level ruletree.Level, subject string) {
			res.Synthesized++
			e.logger.Debug("rule synthesized", "level", level.String(), "subject", subject)
		}),
	)

	if e.store != nil {
		res.Previous, err = e.store.LatestRunFor(ctx, e.rulesPath, e.catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to look up previous run: %w", err)
		}
		res.Run, err = e.store.CreateRun(ctx, state.RunParams{
			Document:    doc.Name,
			RulesPath:   e.rulesPath,
			CatalogPath: e.catalogPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		e.logger.Debug("created run", "run_id", res.Run.ID)
	}

	e.logger.Info("starting resolution", "rules", e.rulesPath, "catalog", e.catalogPath)

	model, runErr := Drive(ctx, r, catalog)
	if runErr == nil {
		if dangling := model.DanglingReferences(); len(dangling) > 0 {
			runErr = fmt.Errorf("model has dangling references:\n  %s", strings.Join(dangling, "\n  "))
		}
	}

	res.Document = r.Document()
	res.Model = model
	res.Decisions = r.Decisions()
	res.Messages = r.Log().Messages()
	res.Duration = time.Since(start)
	res.Digest, err = state.Digest(res.Decisions)
	if err != nil {
		return res, err
	}
	res.Idempotent = runErr == nil && res.Previous != nil && res.Previous.Digest == res.Digest

	if runErr != nil {
		e.logger.Error("resolution failed", "error", runErr.Error())
	} else {
		e.logger.Info("resolution completed", "summary", res.Summary(), "duration", res.Duration)
	}

	if e.store == nil {
		return res, runErr
	}
	if err := e.record(ctx, res, runErr); err != nil {
		return res, errors.Join(runErr, err)
	}
	return res, runErr
}

// record stores the decisions and messages of a run and completes it. History
// writes use a fresh context so a cancelled run is still recorded as cancelled.
func (e *Engine) record(ctx context.Context, res *Result, runErr error) error {
	wctx := context.WithoutCancel(ctx)
	id := res.Run.ID

	status, errMsg := state.RunStatusCompleted, ""
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status, errMsg = state.RunStatusCancelled, runErr.Error()
	case runErr != nil:
		status, errMsg = state.RunStatusFailed, runErr.Error()
	}

	if status == state.RunStatusCompleted {
		if err := e.store.RecordDecisions(wctx, id, res.Decisions); err != nil {
			_ = e.store.CompleteRun(wctx, id, state.RunStatusFailed, "", err.Error())
			return fmt.Errorf("failed to record decisions: %w", err)
		}
	}
	if err := e.store.RecordMessages(wctx, id, res.Messages); err != nil {
		_ = e.store.CompleteRun(wctx, id, state.RunStatusFailed, "", err.Error())
		return fmt.Errorf("failed to record messages: %w", err)
	}

	digest := ""
	if status == state.RunStatusCompleted {
		digest = res.Digest
	}
	if err := e.store.CompleteRun(wctx, id, status, digest, errMsg); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	run, err := e.store.GetRun(wctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload run: %w", err)
	}
	res.Run = run
	return nil
}
