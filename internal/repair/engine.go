package repair

import (
	"context"
	"errors"

	"github.com/topolvm/topofix/internal/metrics"
	"github.com/topolvm/topofix/internal/thinpool"
	"github.com/topolvm/topofix/internal/topology"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrThinPoolUnresolved is returned when a thin-pool backed brick has no
	// known pool for its new id.
	ErrThinPoolUnresolved = errors.New("brick not in thin pool map, can not guess at thin pool")
	// ErrPendingVolumeConflict is returned for volumes with missing bricks
	// that are part of an in-flight heketi operation.
	ErrPendingVolumeConflict = errors.New("volume is pending")
	// ErrUnsupportedSnapshotFactor is returned for volumes with a snapshot
	// factor other than 1; their brick sizes cannot be derived.
	ErrUnsupportedSnapshotFactor = errors.New("can only handle snapshot factor 1")
	// ErrMultiClusterUnsupported is returned when volumes are re-created in a
	// document that does not hold exactly one cluster.
	ErrMultiClusterUnsupported = errors.New("currently requires exactly one cluster")
	// ErrMissingAnnotation is returned when a persistent volume lacks the
	// heketi volume id annotation.
	ErrMissingAnnotation = errors.New("persistent volume is missing the heketi volume id annotation")
)

// Options configures an Engine.
type Options struct {
	// Sizer computes pool metadata sizes. Defaults to thinpool.NewSizer().
	Sizer *thinpool.Sizer
	// Metrics receives counters for the run. Defaults to a new Recorder.
	Metrics *metrics.Recorder
	// SizeDivisors corrects the stored size of specific volumes before brick
	// sizes are derived from it, keyed by volume id. A volume whose stored
	// size is four times its real size gets divisor 4.
	SizeDivisors map[string]int
}

// Engine performs repair operations on one heketi document. It is not safe
// for concurrent use.
type Engine struct {
	idx          *topology.Index
	sizer        *thinpool.Sizer
	metrics      *metrics.Recorder
	sizeDivisors map[string]int
}

// NewEngine returns an Engine editing doc in place.
func NewEngine(doc *topology.Document, opts Options) *Engine {
	e := &Engine{
		idx:          topology.NewIndex(doc),
		sizer:        opts.Sizer,
		metrics:      opts.Metrics,
		sizeDivisors: opts.SizeDivisors,
	}
	if e.sizer == nil {
		e.sizer = thinpool.NewSizer()
	}
	if e.metrics == nil {
		e.metrics = metrics.NewRecorder()
	}
	return e
}

// Index returns the index over the edited document.
func (e *Engine) Index() *topology.Index {
	return e.idx
}

// Metrics returns the recorder counting this engine's changes.
func (e *Engine) Metrics() *metrics.Recorder {
	return e.metrics
}

func (e *Engine) warn(ctx context.Context, kind, msg string, keysAndValues ...any) {
	log.FromContext(ctx).WithCallDepth(1).Info("warning: "+msg, keysAndValues...)
	e.metrics.Warning(kind)
}

// volumeSize returns the size in GiB bricks of volumeID are derived from.
func (e *Engine) volumeSize(ctx context.Context, volumeID string, v *topology.VolumeEntry) int {
	size := v.Info.Size
	if div, ok := e.sizeDivisors[volumeID]; ok && div > 0 {
		size /= div
		log.FromContext(ctx).Info("applying volume size correction",
			"volume", volumeID,
			"stored_size", v.Info.Size,
			"divisor", div,
			"size", size,
		)
	}
	return size
}
