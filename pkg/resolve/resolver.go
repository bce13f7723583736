// Package resolve is the rule resolution engine. A host pipeline walking live catalog
// metadata calls the Resolver hooks once per catalog object, in lifecycle order, and
// applies the returned decisions to its own object model:
//
//	ResolveSchema
//	  ResolveTable, ResolveColumn..., EndTable   (per table)
//	  ResolveForeignKey..., ResolveNavigation... (per table)
//	FinalizeSchema
//	...
//	Finish
//
// The resolver never mutates the host's model. Data-quality problems in the rule
// document are reported through Log and never as errors.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/ruler/pkg/cascade"
	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/naming"
	"github.com/leapstack-labs/ruler/pkg/ruletree"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger that mirrors the run log. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithPredictor sets the name predictor. Defaults to one honoring the document's
// PreserveCasing flag.
func WithPredictor(p *naming.Predictor) Option {
	return func(r *Resolver) { r.treeOpts.Predictor = p }
}

// WithSynthesisHook registers a callback invoked whenever a rule is synthesized.
func WithSynthesisHook(fn func(level ruletree.Level, subject string)) Option {
	return func(r *Resolver) { r.treeOpts.OnSynthesize = fn }
}

// Resolver binds catalog objects to rules for one run at a time. It is not safe for
// concurrent use; a run owns its rule index and cascade tracker exclusively.
type Resolver struct {
	logger   *slog.Logger
	treeOpts ruletree.Options

	idx       *ruletree.Index
	buildMsgs []core.Message

	fold    cases.Caser
	tracker *cascade.Tracker
	log     core.Log

	decisions []core.Decision
	aborted   error
	finished  bool

	schemas     map[string]*schemaState
	schemaOrder []*schemaState
	tables      map[string]*tableState
}

// schemaState is the per-run state of a visited schema.
type schemaState struct {
	name      string
	node      *ruletree.Schema
	omitted   bool
	finalized bool
	tables    []*tableState
}

// tableState is the per-run state of a visited table.
type tableState struct {
	table   *core.Table
	schema  *schemaState
	entity  *ruletree.Entity
	omitted bool
	ended   bool

	columns  map[string]bool // visited, folded
	kept     int
	excluded []string        // column names in visit order
	isExcl   map[string]bool // lower-cased, for core References helpers

	fks     map[string]*fkState // folded foreign key name
	navs    map[string]*navState
	navList []*navState
}

// fkState tracks a foreign key declared by a dependent table.
type fkState struct {
	fk      *core.ForeignKey
	table   *core.Table
	omitted bool
	ends    []*navState
}

// navState tracks a relationship end resolved on a table.
type navState struct {
	owner     *tableState
	end       core.NavigationEnd
	fkName    string
	principal bool
	predicted string
	excluded  bool
	flushed   bool
}

// New creates a resolver over doc. A nil doc includes everything.
func New(doc *core.RuleDocument, opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	r.idx, r.buildMsgs = ruletree.Build(doc, r.treeOpts)
	for _, m := range r.buildMsgs {
		r.logger.Warn(m.Text, "kind", m.Kind, "subject", m.Subject)
	}
	r.resetRun()
	return r
}

// Reset discards all run state: synthesized rules, bindings, omissions, decisions
// and the log. The next run starts from the document as it was passed to New.
func (r *Resolver) Reset() {
	r.idx.Reset()
	r.resetRun()
}

func (r *Resolver) resetRun() {
	r.fold = cases.Fold()
	r.tracker = cascade.New()
	r.log.Reset()
	for _, m := range r.buildMsgs {
		r.log.Add(m)
	}
	r.decisions = nil
	r.aborted = nil
	r.finished = false
	r.schemas = make(map[string]*schemaState)
	r.schemaOrder = nil
	r.tables = make(map[string]*tableState)
}

// Document returns the rule document, including rules synthesized in this run.
func (r *Resolver) Document() *core.RuleDocument { return r.idx.Doc }

// Index returns the rule tree.
func (r *Resolver) Index() *ruletree.Index { return r.idx }

// Tracker returns the cascade tracker of the current run.
func (r *Resolver) Tracker() *cascade.Tracker { return r.tracker }

// Decisions returns every decision emitted in this run, in emission order.
func (r *Resolver) Decisions() []core.Decision {
	out := make([]core.Decision, len(r.decisions))
	copy(out, r.decisions)
	return out
}

// Log returns the run log.
func (r *Resolver) Log() *core.Log { return &r.log }

// Aborted returns the invariant violation that aborted the run, if any.
func (r *Resolver) Aborted() error { return r.aborted }

// run guards a hook: it refuses to run after an abort, resets on cancellation, and
// records the decisions of a successful call.
func (r *Resolver) run(ctx context.Context, fn func() ([]core.Decision, error)) ([]core.Decision, error) {
	if r.aborted != nil {
		return nil, ErrAborted
	}
	if err := ctx.Err(); err != nil {
		r.Reset()
		return nil, err
	}

	out, err := fn()
	if err != nil {
		var inv *InvariantError
		if errors.As(err, &inv) {
			r.aborted = err
			r.log.Error(core.KindStructuralInvariantViolation, inv.Subject, "%s", inv.Detail)
			r.logger.Error("resolution aborted", "subject", inv.Subject, "error", inv.Detail)
		}
		return nil, err
	}
	r.decisions = append(r.decisions, out...)
	return out, nil
}

func (r *Resolver) warn(kind core.MessageKind, subject, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	r.log.Add(core.Message{Severity: core.SeverityWarning, Kind: kind, Subject: subject, Text: text})
	r.logger.Warn(text, "kind", kind, "subject", subject)
}

func (r *Resolver) info(kind core.MessageKind, subject, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	r.log.Add(core.Message{Severity: core.SeverityInfo, Kind: kind, Subject: subject, Text: text})
	r.logger.Info(text, "kind", kind, "subject", subject)
}

func (r *Resolver) schemaKey(name string) string { return r.fold.String(name) }

func (r *Resolver) tableKey(id core.TableID) string {
	return r.fold.String(id.Schema) + "\x00" + r.fold.String(id.Name)
}

func (r *Resolver) tableState(t *core.Table) *tableState {
	return r.tables[r.tableKey(t.ID())]
}
