package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/ruler/internal/cli/output"
	"github.com/leapstack-labs/ruler/internal/engine"
	"github.com/leapstack-labs/ruler/internal/state"
	"github.com/leapstack-labs/ruler/pkg/core"
)

// resolveReport is the JSON shape of a resolution result.
type resolveReport struct {
	Summary     string          `json:"summary"`
	RunID       string          `json:"run_id,omitempty"`
	Digest      string          `json:"digest"`
	Idempotent  bool            `json:"idempotent"`
	Synthesized int             `json:"synthesized"`
	DurationMS  int64           `json:"duration_ms"`
	Entities    []entityReport  `json:"entities"`
	Messages    []core.Message  `json:"messages"`
	Decisions   []core.Decision `json:"decisions,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type entityReport struct {
	Schema      string   `json:"schema"`
	Table       string   `json:"table,omitempty"`
	Name        string   `json:"name"`
	BaseType    string   `json:"base_type,omitempty"`
	Properties  []string `json:"properties"`
	Navigations []string `json:"navigations,omitempty"`
}

func newResolveReport(res *engine.Result, runErr error, withDecisions bool) resolveReport {
	rep := resolveReport{
		Summary:     res.Summary(),
		Digest:      res.Digest,
		Idempotent:  res.Idempotent,
		Synthesized: res.Synthesized,
		DurationMS:  res.Duration.Milliseconds(),
		Entities:    []entityReport{},
		Messages:    res.Messages,
	}
	if res.Run != nil {
		rep.RunID = res.Run.ID
	}
	if withDecisions {
		rep.Decisions = res.Decisions
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	if res.Model == nil {
		return rep
	}
	for _, e := range res.Model.Entities {
		er := entityReport{Schema: e.Schema, Table: e.Table, Name: e.Name, BaseType: e.BaseType, Properties: []string{}}
		for _, p := range e.Properties {
			er.Properties = append(er.Properties, p.Name)
		}
		for _, n := range e.Navigations {
			er.Navigations = append(er.Navigations, n.Name)
		}
		rep.Entities = append(rep.Entities, er)
	}
	return rep
}

// renderResult writes a resolution result in the renderer's mode.
func renderResult(r *output.Renderer, res *engine.Result, runErr error, withDecisions bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(newResolveReport(res, runErr, withDecisions))
	}

	r.Header(1, "Resolution")
	r.Println(res.Summary())
	if res.Run != nil {
		r.Printf("Run: %s (%s)\n", res.Run.ID, res.Run.Status)
	}
	if res.Idempotent {
		r.Println(r.Styles().Success.Render("Decisions unchanged since run " + res.Previous.ID))
	}
	r.Println("")

	if res.Model != nil && len(res.Model.Entities) > 0 {
		r.Header(2, "Entities")
		rows := make([][]string, 0, len(res.Model.Entities))
		for _, e := range res.Model.Entities {
			table := e.Table
			if !e.TableMapped {
				table = "-"
			}
			rows = append(rows, []string{
				e.Schema, table, e.Name, e.BaseType,
				strconv.Itoa(len(e.Properties)), strconv.Itoa(len(e.Navigations)),
			})
		}
		r.Table([]string{"Schema", "Table", "Entity", "Base", "Properties", "Navigations"}, rows)
		r.Println("")
	}

	renderMessages(r, res.Messages)

	if withDecisions {
		renderDecisions(r, res.Decisions)
	}
	return nil
}

func renderMessages(r *output.Renderer, messages []core.Message) {
	if len(messages) == 0 {
		return
	}
	r.Header(2, "Messages")
	for _, m := range messages {
		sev := r.Styles().Severity(m.Severity).Render(m.Severity.String())
		if m.Subject != "" {
			r.Printf("- %s [%s] %s: %s\n", sev, m.Kind, m.Subject, m.Text)
		} else {
			r.Printf("- %s [%s] %s\n", sev, m.Kind, m.Text)
		}
	}
	r.Println("")
}

func renderDecisions(r *output.Renderer, decisions []core.Decision) {
	if len(decisions) == 0 {
		return
	}
	r.Header(2, "Decisions")
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		rows = append(rows, []string{string(d.Kind), d.Subject(), decisionDetail(d)})
	}
	r.Table([]string{"Kind", "Subject", "Detail"}, rows)
	r.Println("")
}

func decisionDetail(d core.Decision) string {
	var parts []string
	if d.Name != "" {
		parts = append(parts, "name="+d.Name)
	}
	if d.Type != "" {
		parts = append(parts, "type="+d.Type)
	}
	if d.BaseType != "" {
		parts = append(parts, "base="+d.BaseType)
	}
	if d.Strategy != "" {
		parts = append(parts, "strategy="+string(d.Strategy))
	}
	if d.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", d.Value))
	}
	for _, a := range d.Annotations {
		parts = append(parts, "@"+a.Key)
	}
	return strings.Join(parts, " ")
}

func renderRuns(r *output.Renderer, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}
	r.Header(1, "Run history")
	if len(runs) == 0 {
		r.Println("No runs recorded.")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID, string(run.Status), run.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(run.Decisions), strconv.Itoa(run.Messages), shortDigest(run.Digest),
		})
	}
	r.Table([]string{"ID", "Status", "Started", "Decisions", "Messages", "Digest"}, rows)
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
