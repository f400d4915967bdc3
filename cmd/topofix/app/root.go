package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/topolvm/topofix"
	"github.com/topolvm/topofix/internal/fileutil"
	"github.com/topolvm/topofix/internal/loader"
	"github.com/topolvm/topofix/internal/metrics"
	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/topology"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

const (
	flagHeketiJSON      = "heketi-json"
	flagConfig          = "config"
	flagOutput          = "output"
	flagLock            = "lock"
	flagMetricsTextfile = "metrics-textfile"
)

var zapOpts = zap.Options{
	TimeEncoder: zapcore.ISO8601TimeEncoder,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "topofix",
	Version: topofix.Version,
	Short:   "repair tool for heketi topology databases",
	Long: `topofix edits a heketi database export offline.

It can swap bricks that were replaced outside heketi, rebuild brick and
volume records heketi lost from gluster, LVM, and Kubernetes state, remove
brick records, and check the brick, device, and volume cross references.

The export is read from --heketi-json or the TOPOFIX_HEKETI_JSON
environment variable. The edited document is written to standard output,
or to --output. Logs go to standard error.
`,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

// execute runs the root command and reports its error on the error
// stream; standard output may be carrying the document.
func execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// runOnDocument loads the heketi export, lets edit change it through a
// repair engine, and writes the result. Nothing is written when edit fails.
func runOnDocument(ctx context.Context, edit func(context.Context, *repair.Engine, *Config) error) error {
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

	cfg, err := loadConfFile(ctx, viper.GetString(flagConfig))
	if err != nil {
		return err
	}
	doc, err := loader.LoadDocument(ctx, path)
	if err != nil {
		return err
	}

	e := repair.NewEngine(doc, cfg.engineOptions())
	if err := edit(ctx, e, cfg); err != nil {
		return err
	}
	if err := writeMetrics(e.Metrics()); err != nil {
		return err
	}
	return writeDocument(doc)
}

func writeDocument(doc *topology.Document) error {
	out := viper.GetString(flagOutput)
	if out == "" {
		return doc.Encode(os.Stdout)
	}
	return fileutil.WriteAtomic(out, 0644, doc.Encode)
}

func writeMetrics(r *metrics.Recorder) error {
	path := viper.GetString(flagMetricsTextfile)
	if path == "" {
		return nil
	}
	return metrics.WriteTextfile(path, r.Gatherer())
}

func addLVJSONFlag(fs *pflag.FlagSet, p *[]string) {
	fs.StringArrayVar(p, "lv-json", nil, "lvs --reportformat json --units k output of a storage node; may be repeated")
}

//nolint:lll
func init() {
	fs := rootCmd.PersistentFlags()
	fs.String(flagHeketiJSON, "", "heketi db export to edit (env TOPOFIX_HEKETI_JSON)")
	fs.String(flagConfig, "", "config file (env TOPOFIX_CONFIG)")
	fs.StringP(flagOutput, "o", "", "write the edited document to this file instead of standard output")
	fs.Bool(flagLock, false, "hold an exclusive lock on the heketi db export while running")
	fs.String(flagMetricsTextfile, "", "write run counters to this file in the prometheus text format")

	_ = viper.BindEnv(flagHeketiJSON, "TOPOFIX_HEKETI_JSON")
	_ = viper.BindEnv(flagConfig, "TOPOFIX_CONFIG")
	for _, name := range []string{flagHeketiJSON, flagConfig, flagOutput, flagLock, flagMetricsTextfile} {
		_ = viper.BindPFlag(name, fs.Lookup(name))
	}

	goflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goflags)
	zapOpts.BindFlags(goflags)
	fs.AddGoFlagSet(goflags)

	rootCmd.AddCommand(swapCmd, restoreCmd, restoreVolumesCmd, trimCmd, checkCmd, pmdsizeCmd)
}
