package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ruler/internal/cli/output"
	"github.com/leapstack-labs/ruler/internal/engine"
	"github.com/leapstack-labs/ruler/pkg/core"
)

type validateReport struct {
	Rules    string         `json:"rules"`
	Catalog  string         `json:"catalog,omitempty"`
	Valid    bool           `json:"valid"`
	Messages []core.Message `json:"messages"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the rule document",
		Long: `Validate loads the rule document and reports duplicate rules and
invalid annotations. When the catalog snapshot exists, the rules are also
resolved against it without recording, so rules that match nothing and
unconvertible discriminator values are reported too.

With --strict, warnings fail validation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			rulesPath := cc.Cfg.RulesPath

			if _, err := os.Stat(rulesPath); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("rules file not found: %s\nHint: Set rules_path in ruler.yaml or pass --rules", rulesPath)
			}

			_, messages, err := engine.ValidateRules(rulesPath)
			if err != nil {
				return err
			}

			rep := validateReport{Rules: rulesPath}
			if _, statErr := os.Stat(cc.Cfg.CatalogPath); statErr == nil {
				rep.Catalog = cc.Cfg.CatalogPath
				eng, err := cc.NewEngine(false)
				if err != nil {
					return err
				}
				res, runErr := eng.Run(cmd.Context())
				_ = eng.Close()
				if res == nil {
					return runErr
				}
				// rule tree messages are already part of the resolution log
				messages = res.Messages
				if runErr != nil {
					messages = append(messages, core.Message{
						Severity: core.SeverityError,
						Kind:     core.KindStructuralInvariantViolation,
						Text:     runErr.Error(),
					})
				}
			} else {
				cc.Logger.Debug("catalog not found, skipping dry run", "path", cc.Cfg.CatalogPath)
			}

			rep.Messages = messages
			if rep.Messages == nil {
				rep.Messages = []core.Message{}
			}
			rep.Valid = !failsValidation(messages, strict)

			if err := renderValidation(cc.Renderer, rep); err != nil {
				return err
			}
			if !rep.Valid {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as failures")

	return cmd
}

func failsValidation(messages []core.Message, strict bool) bool {
	for _, m := range messages {
		if m.Severity == core.SeverityError || (strict && m.Severity == core.SeverityWarning) {
			return true
		}
	}
	return false
}

func renderValidation(r *output.Renderer, rep validateReport) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}
	r.Header(1, "Validation")
	r.Printf("Rules: %s\n", rep.Rules)
	if rep.Catalog != "" {
		r.Printf("Catalog: %s\n", rep.Catalog)
	}
	r.Println("")
	renderMessages(r, rep.Messages)
	if rep.Valid {
		r.Println(r.Styles().Success.Render("Rules are valid"))
	} else {
		r.Println(r.Styles().Error.Render("Rules are invalid"))
	}
	return nil
}
