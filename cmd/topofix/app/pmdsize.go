package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topolvm/topofix"
	"k8s.io/apimachinery/pkg/api/resource"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var pmdsizeTableKey int

var pmdsizeCmd = &cobra.Command{
	Use:   "pmdsize SIZE",
	Short: "print the pool metadata size heketi uses for a thin pool",
	Long: `Print the pool metadata size, in KiB, heketi allocates for a thin pool
of SIZE. SIZE is a quantity such as 20Gi or 20971520Ki.

The result is compared with the table of known sizes for the size in GiB,
or for --table-key when given, and the command fails when they differ.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := log.IntoContext(cmd.Context(), ctrl.Log.WithName("topofix"))

		q, err := resource.ParseQuantity(args[0])
		if err != nil {
			return err
		}
		bytes := q.Value()
		if bytes < 0 || bytes%1024 != 0 {
			return fmt.Errorf("size %s is not a whole number of KiB", args[0])
		}
		size := uint64(bytes / 1024)

		cfg, err := loadConfFile(ctx, viper.GetString(flagConfig))
		if err != nil {
			return err
		}
		sizer := cfg.sizer()
		meta, err := sizer.MetadataSize(size)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), meta)

		key := pmdsizeTableKey
		if !cmd.Flags().Changed("table-key") {
			if size%topofix.KiBPerGiB != 0 {
				return nil
			}
			key = int(size / topofix.KiBPerGiB)
		}
		if mismatch := sizer.Check(key, meta); mismatch != nil {
			return mismatch
		}
		return nil
	},
}

func init() {
	pmdsizeCmd.Flags().IntVar(&pmdsizeTableKey, "table-key", 0, "compare with the table entry for this many GiB")
}
