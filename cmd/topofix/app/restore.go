package app

import (
	"context"
	"errors"
	"slices"

	"github.com/spf13/cobra"
	"github.com/topolvm/topofix/internal/loader"
	"github.com/topolvm/topofix/internal/repair"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var restoreConfig struct {
	glusterInfo       string
	lvJSON            []string
	brickSwap         string
	increaseUsage     bool
	trimSwappedBricks bool
	volumes           []string
	pvYAML            string
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "rebuild brick records heketi lost",
	Long: `Rebuild brick records heketi lost.

Bricks gluster reports for a volume that heketi does not know are added
back, placed on the device and node named by their brick path. Sizes come
from the lvs reports when they have the brick LV, and from the volume size
otherwise. Pending volumes are left alone and reported as an error after
every other volume was restored.

Devices are debited for every brick added to their brick list. Pass
--increase-usage=false when the device counters already include the
restored bricks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOnDocument(cmd.Context(), func(ctx context.Context, e *repair.Engine, cfg *Config) error {
			increaseUsage := cfg.increaseUsage(cmd.Flags().Changed("increase-usage"), restoreConfig.increaseUsage)
			return restoreSubMain(ctx, e, increaseUsage)
		})
	},
}

func restoreSubMain(ctx context.Context, e *repair.Engine, increaseUsage bool) error {
	logger := log.FromContext(ctx)

	listing, err := loader.LoadVolumeInfo(ctx, restoreConfig.glusterInfo)
	if err != nil {
		return err
	}
	report, err := loader.LoadLVMReport(ctx, restoreConfig.lvJSON...)
	if err != nil {
		return err
	}
	brickSwap := map[string]string{}
	if restoreConfig.brickSwap != "" {
		brickSwap, err = loader.LoadBrickSwapMap(restoreConfig.brickSwap)
		if err != nil {
			return err
		}
	}

	if len(restoreConfig.volumes) > 0 {
		if restoreConfig.pvYAML == "" {
			return errors.New("--volume needs --pv-yaml")
		}
		pvs, err := loader.LoadPersistentVolumes(restoreConfig.pvYAML)
		if err != nil {
			return err
		}
		if _, err := e.RestoreVolumes(ctx, pvs, restoreConfig.volumes); err != nil {
			return err
		}
	}

	result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{
		IncreaseUsage: increaseUsage,
		BrickSwap:     brickSwap,
	})
	if err != nil {
		if errors.Is(err, repair.ErrPendingVolumeConflict) {
			logger.Error(err, "pending volumes were not restored", "volumes", result.Pending)
		}
		return err
	}
	logger.Info("restore finished",
		"restored", len(result.Restored),
		"skipped_volumes", len(result.Skipped),
	)

	if restoreConfig.trimSwappedBricks {
		sources := make([]string, 0, len(brickSwap))
		for _, src := range brickSwap {
			sources = append(sources, src)
		}
		slices.Sort(sources)
		if _, err := e.TrimBricks(ctx, slices.Compact(sources), true); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	fs := restoreCmd.Flags()
	fs.StringVarP(&restoreConfig.glusterInfo, "gluster-info", "g", "", "file with gluster volume info output")
	addLVJSONFlag(fs, &restoreConfig.lvJSON)
	fs.StringVarP(&restoreConfig.brickSwap, "brick-swap", "b", "", "file mapping restored brick ids to the brick ids they replace")
	fs.BoolVar(&restoreConfig.increaseUsage, "increase-usage", true, "account restored bricks as used space on their devices")
	fs.BoolVarP(&restoreConfig.trimSwappedBricks, "trim-swapped-bricks", "T", false, "remove the replaced bricks named in --brick-swap after restoring")
	fs.StringArrayVarP(&restoreConfig.volumes, "volume", "V", nil, "re-create the volume with this gluster name from --pv-yaml first; may be repeated")
	fs.StringVarP(&restoreConfig.pvYAML, "pv-yaml", "y", "", "file with a PersistentVolume list")
	_ = restoreCmd.MarkFlagRequired("gluster-info")
}
