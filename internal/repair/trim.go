package repair

import (
	"context"
	"slices"

	"github.com/topolvm/topofix/internal/metrics"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// TrimResult reports what TrimBricks did.
type TrimResult struct {
	Trimmed []string
	// Unknown holds requested ids that had no brick record.
	Unknown []string
}

// TrimBricks deletes the given brick records and removes their ids from
// every device and volume list, not only the ones the records point at.
// With reduceUsage every device whose list held a brick is credited the
// brick's footprint. Unknown ids are skipped.
func (e *Engine) TrimBricks(ctx context.Context, brickIDs []string, reduceUsage bool) (*TrimResult, error) {
	logger := log.FromContext(ctx)
	result := &TrimResult{}
	for _, id := range brickIDs {
		b, err := e.idx.DeleteBrick(id)
		if err != nil {
			e.warn(ctx, metrics.WarningUnknownBrick, "skipping unknown brick", "brick", id)
			result.Unknown = append(result.Unknown, id)
			continue
		}
		devices, volumes := e.idx.DetachEverywhere(id)
		logger.Info("trimmed brick", "brick", id, "devices", devices, "volumes", volumes)

		if reduceUsage {
			for _, d := range devices {
				if err := e.idx.Credit(ctx, d, b.Footprint()); err != nil {
					return result, err
				}
			}
		}
		if !slices.Contains(devices, b.Info.Device) {
			logger.Info("brick was not listed by its device", "brick", id, "device", b.Info.Device)
		}
		result.Trimmed = append(result.Trimmed, id)
		e.metrics.BrickTrimmed()
	}
	return result, nil
}
