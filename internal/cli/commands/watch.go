package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ruler/internal/engine"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve whenever the rules or the catalog change",
		Long: `Watch resolves once, then again every time the rules file or the
catalog snapshot is written. Bursts of writes are coalesced by the
debounce interval. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			if debounce <= 0 {
				debounce = cc.Cfg.Watch.Debounce
			}

			eng, err := cc.NewEngine(cc.Cfg.Record)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cc.Renderer.Warnf("Watching %s and %s", cc.Cfg.RulesPath, cc.Cfg.CatalogPath)
			return eng.Watch(ctx, debounce, func(res *engine.Result, runErr error) {
				if res == nil {
					cc.Renderer.Warnf("resolution failed: %v", runErr)
					return
				}
				if err := renderResult(cc.Renderer, res, runErr, false); err != nil {
					cc.Logger.Error("failed to render result", "error", err)
				}
				if runErr != nil {
					cc.Renderer.Warnf("resolution failed: %v", runErr)
				}
			})
		},
	}

	cmd.Flags().Bool("record", false, "Record every run in the state database")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before re-resolving (default from watch.debounce)")

	return cmd
}
