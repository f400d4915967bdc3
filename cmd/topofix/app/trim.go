package app

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/topolvm/topofix/internal/repair"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var trimReduceUsage bool

var trimCmd = &cobra.Command{
	Use:   "trim BRICK_ID...",
	Short: "remove brick records",
	Long: `Remove brick records and every reference to them.

The owning device gets the space of each brick back unless
--reduce-usage=false is given. Unknown brick ids are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOnDocument(cmd.Context(), func(ctx context.Context, e *repair.Engine, _ *Config) error {
			result, err := e.TrimBricks(ctx, args, trimReduceUsage)
			if err != nil {
				return err
			}
			log.FromContext(ctx).Info("trim finished", "trimmed", result.Trimmed, "unknown", result.Unknown)
			return nil
		})
	},
}

func init() {
	trimCmd.Flags().BoolVar(&trimReduceUsage, "reduce-usage", true, "give the space of removed bricks back to their devices")
}
