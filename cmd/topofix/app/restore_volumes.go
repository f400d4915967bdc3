package app

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/topolvm/topofix/internal/loader"
	"github.com/topolvm/topofix/internal/repair"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var restoreVolumesPVYAML string

var restoreVolumesCmd = &cobra.Command{
	Use:   "restore-volumes VOLUME_NAME...",
	Short: "re-create volume records from persistent volumes",
	Long: `Re-create the volume records of gluster volumes heketi lost.

Each named gluster volume is looked up by its path in the PersistentVolume
list; the heketi volume id and gid come from the PV annotations and the
size from its capacity. The document must hold exactly one cluster. Run
restore afterwards to add the bricks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOnDocument(cmd.Context(), func(ctx context.Context, e *repair.Engine, _ *Config) error {
			pvs, err := loader.LoadPersistentVolumes(restoreVolumesPVYAML)
			if err != nil {
				return err
			}
			created, err := e.RestoreVolumes(ctx, pvs, args)
			if err != nil {
				return err
			}
			log.FromContext(ctx).Info("volumes re-created", "volumes", created)
			return nil
		})
	},
}

func init() {
	restoreVolumesCmd.Flags().StringVarP(&restoreVolumesPVYAML, "pv-yaml", "y", "", "file with a PersistentVolume list")
	_ = restoreVolumesCmd.MarkFlagRequired("pv-yaml")
}
