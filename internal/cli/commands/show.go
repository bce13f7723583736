package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ruler/internal/cli/output"
	"github.com/leapstack-labs/ruler/internal/state"
	"github.com/leapstack-labs/ruler/pkg/core"
)

type showReport struct {
	Run       *state.Run      `json:"run"`
	Decisions []core.Decision `json:"decisions"`
	Messages  []core.Message  `json:"messages"`
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show a recorded run",
		Long:  `Show a recorded run with its decisions and messages.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := cc.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var run *state.Run
			if args[0] == "latest" {
				runs, err := store.ListRuns(ctx, 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no runs recorded\nHint: Record a run with 'ruler resolve --record'")
				}
				run = runs[0]
			} else if run, err = store.GetRun(ctx, args[0]); err != nil {
				return err
			}

			rep := showReport{Run: run}
			if rep.Decisions, err = store.GetDecisions(ctx, run.ID); err != nil {
				return err
			}
			if rep.Messages, err = store.GetMessages(ctx, run.ID); err != nil {
				return err
			}
			return renderShow(cc.Renderer, rep)
		},
	}
}

func renderShow(r *output.Renderer, rep showReport) error {
	if r.EffectiveMode() == output.ModeJSON {
		if rep.Decisions == nil {
			rep.Decisions = []core.Decision{}
		}
		if rep.Messages == nil {
			rep.Messages = []core.Message{}
		}
		return r.JSON(rep)
	}

	run := rep.Run
	r.Header(1, "Run "+run.ID)
	r.Printf("Status: %s\n", run.Status)
	r.Printf("Rules: %s\n", run.RulesPath)
	r.Printf("Catalog: %s\n", run.CatalogPath)
	if run.Digest != "" {
		r.Printf("Digest: %s\n", run.Digest)
	}
	if run.Error != "" {
		r.Println(r.Styles().Error.Render("Error: " + run.Error))
	}
	r.Println("")

	renderMessages(r, rep.Messages)
	renderDecisions(r, rep.Decisions)
	return nil
}
