package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/topolvm/topofix/internal/fileutil"
)

// WriteText writes every metric gathered from g in the text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteTextfile replaces path with the metrics gathered from g, for the
// node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return WriteText(w, g)
	})
}
