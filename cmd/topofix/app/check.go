package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topolvm/topofix/internal/fileutil"
	"github.com/topolvm/topofix/internal/loader"
	"github.com/topolvm/topofix/internal/topology"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check the cross references of a heketi db export",
	Long: `Check that brick records and the device and volume brick lists agree.

The capacity of every device is printed to standard output. The command
fails when any reference is inconsistent. The document is not changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return checkSubMain(cmd.Context(), os.Stdout)
	},
}

func checkSubMain(ctx context.Context, w io.Writer) error {
	ctx = log.IntoContext(ctx, ctrl.Log.WithName("topofix"))
	logger := log.FromContext(ctx)
	path := viper.GetString(flagHeketiJSON)
	if path == "" {
		return errors.New("heketi db json is not given")
	}
	if viper.GetBool(flagLock) {
		unlock, err := fileutil.Lock(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(); err != nil {
				logger.Error(err, "failed to release lock", "file_name", path)
			}
		}()
	}
	doc, err := loader.LoadDocument(ctx, path)
	if err != nil {
		return err
	}
	idx := topology.NewIndex(doc)
	if err := printCapacity(w, idx); err != nil {
		return err
	}
	return idx.Verify()
}

func printCapacity(w io.Writer, idx *topology.Index) error {
	doc := idx.Document()
	ids := make([]string, 0, len(doc.Devices))
	for id := range doc.Devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tNODE\tBRICKS\tUSED\tFREE\tTOTAL")
	for _, id := range ids {
		d := doc.Devices[id]
		s := d.Info.Storage
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", id, d.NodeID, len(d.Bricks), s.Used, s.Free, s.Used+s.Free)
	}
	fmt.Fprintf(tw, "\t\t\t\t\t%d\n", idx.TotalCapacity())
	return tw.Flush()
}
