package app

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/topolvm/topofix/internal/loader"
	"github.com/topolvm/topofix/internal/repair"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var swapConfig struct {
	swaps    []string
	swapFile string
	lvJSON   []string
}

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "replace bricks with bricks created outside heketi",
	Long: `Replace bricks with bricks created outside heketi.

Each swap is given as OLD_DEVICE:OLD_BRICK:NEW_DEVICE:NEW_BRICK; the ids
may also be separated by spaces, commas, or slashes. The new brick takes
over the volume and sizes of the old one. Thin pools of the new bricks are
looked up in the lvs reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOnDocument(cmd.Context(), swapSubMain)
	},
}

func swapSubMain(ctx context.Context, e *repair.Engine, _ *Config) error {
	specs := make([]loader.SwapSpec, 0, len(swapConfig.swaps))
	for _, txt := range swapConfig.swaps {
		s, err := loader.ParseSwapSpec(txt)
		if err != nil {
			return err
		}
		specs = append(specs, s)
	}
	if swapConfig.swapFile != "" {
		fromFile, err := loader.LoadSwapFile(swapConfig.swapFile)
		if err != nil {
			return err
		}
		specs = append(specs, fromFile...)
	}
	if len(specs) == 0 {
		return errors.New("no swaps given")
	}

	report, err := loader.LoadLVMReport(ctx, swapConfig.lvJSON...)
	if err != nil {
		return err
	}
	thinPools := report.ThinPoolMap()

	logger := log.FromContext(ctx)
	for _, s := range specs {
		if err := e.SwapBrick(ctx, s.OldDevice, s.OldBrick, s.NewDevice, s.NewBrick, thinPools); err != nil {
			logger.Error(err, "swap failed", "swap", s.String())
			return err
		}
	}
	return nil
}

func init() {
	fs := swapCmd.Flags()
	fs.StringArrayVarP(&swapConfig.swaps, "swap", "s", nil, "swap OLD_DEVICE:OLD_BRICK:NEW_DEVICE:NEW_BRICK; may be repeated")
	fs.StringVarP(&swapConfig.swapFile, "swap-file", "f", "", "file with one swap per line")
	addLVJSONFlag(fs, &swapConfig.lvJSON)
}
