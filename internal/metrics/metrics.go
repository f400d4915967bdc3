package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "topofix"

// Warning kinds.
const (
	WarningThinPoolMismatch  = "thin_pool_mismatch"
	WarningMetadataMismatch  = "metadata_size_mismatch"
	WarningMalformedPath     = "malformed_path"
	WarningUnknownBrick      = "unknown_brick"
	WarningMismatchedLVPools = "mismatched_lv_pools"
)

// Recorder counts what a run changed. Each run owns its own registry.
type Recorder struct {
	registry        *prometheus.Registry
	bricksSwapped   prometheus.Counter
	bricksRestored  prometheus.Counter
	bricksTrimmed   prometheus.Counter
	volumesSkipped  prometheus.Counter
	volumesRestored prometheus.Counter
	warnings        *prometheus.CounterVec
}

// NewRecorder returns a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		bricksSwapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bricks",
			Name:      "swapped_total",
			Help:      "Number of bricks replaced by a new brick",
		}),
		bricksRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bricks",
			Name:      "restored_total",
			Help:      "Number of brick records rebuilt from gluster and LVM state",
		}),
		bricksTrimmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bricks",
			Name:      "trimmed_total",
			Help:      "Number of brick records removed",
		}),
		volumesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "volumes",
			Name:      "skipped_total",
			Help:      "Number of volumes without gluster volume info",
		}),
		volumesRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "volumes",
			Name:      "restored_total",
			Help:      "Number of volume records rebuilt from persistent volumes",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Number of data quality warnings by kind",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		r.bricksSwapped,
		r.bricksRestored,
		r.bricksTrimmed,
		r.volumesSkipped,
		r.volumesRestored,
		r.warnings,
	)
	return r
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Recorder) BrickSwapped()   { r.bricksSwapped.Inc() }
func (r *Recorder) BrickRestored()  { r.bricksRestored.Inc() }
func (r *Recorder) BrickTrimmed()   { r.bricksTrimmed.Inc() }
func (r *Recorder) VolumeSkipped()  { r.volumesSkipped.Inc() }
func (r *Recorder) VolumeRestored() { r.volumesRestored.Inc() }

// Warning counts a warning of the given kind.
func (r *Recorder) Warning(kind string) {
	r.warnings.WithLabelValues(kind).Inc()
}
