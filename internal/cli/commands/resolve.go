package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var writeBack, showDecisions bool

	cmd := &cobra.Command{
		Use:     "resolve",
		Aliases: []string{"run"},
		Short:   "Resolve the catalog against the rule document",
		Long: `Resolve walks the catalog snapshot schema by schema, applies the rule
document and prints the resulting entity model, the resolution log and
optionally every decision.

With --record the run, its decisions and its messages are stored in the
state database. A recorded run compares its decision digest against the
last completed run over the same inputs.

With --write-back the rule document, including rules synthesized for
objects the document did not mention, is saved back to the rules file.`,
		Example: `  # Resolve and print the model
  ruler resolve

  # Record the run and show every decision as JSON
  ruler resolve --record --decisions -o json

  # Fill the rules file with rules for every catalog object
  ruler resolve --write-back`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)

			eng, err := cc.NewEngine(cc.Cfg.Record)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res, runErr := eng.Run(cmd.Context())
			if res == nil {
				return runErr
			}

			if writeBack && runErr == nil {
				if err := eng.WriteBack(res); err != nil {
					return err
				}
				cc.Logger.Info("rules written back", "path", eng.RulesPath())
			}

			if err := renderResult(cc.Renderer, res, runErr, showDecisions); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if res.HasErrors() {
				return fmt.Errorf("resolution logged errors\nHint: Run with -v for details")
			}
			return nil
		},
	}

	cmd.Flags().Bool("record", false, "Record the run in the state database")
	cmd.Flags().BoolVar(&writeBack, "write-back", false, "Save the completed rule document to the rules file")
	cmd.Flags().BoolVar(&showDecisions, "decisions", false, "Include every decision in the output")

	return cmd
}
