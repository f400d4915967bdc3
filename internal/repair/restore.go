package repair

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/topolvm/topofix"
	"github.com/topolvm/topofix/internal/lvm"
	"github.com/topolvm/topofix/internal/metrics"
	"github.com/topolvm/topofix/internal/topology"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// RestoreOptions controls RestoreBricks.
type RestoreOptions struct {
	// IncreaseUsage debits a device for each brick newly added to its list.
	// Leave it off when the device counters already include the bricks.
	IncreaseUsage bool
	// BrickSwap maps a restored brick id to an existing brick whose sizes
	// it copies, for bricks that were replaced outside heketi.
	BrickSwap map[string]string
}

// RestoreResult reports what RestoreBricks did.
type RestoreResult struct {
	// Restored holds the ids of the brick records written, in order.
	Restored []string
	// Skipped holds the ids of volumes without gluster volume info.
	Skipped []string
	// Pending holds the ids of volumes left alone because they are pending.
	Pending []string
}

// RestoreBricks rebuilds brick records heketi lost, using listing (gluster
// volume name to brick paths) as the source of truth for which bricks
// exist and report for their thin pools and sizes.
//
// Volumes missing from listing are skipped. A volume with a snapshot
// factor other than 1 aborts the run. A pending volume with missing bricks
// is left alone; the other volumes are still restored and
// ErrPendingVolumeConflict is returned for each pending one, joined.
func (e *Engine) RestoreBricks(ctx context.Context, listing map[string][]string, report *lvm.Report, opts RestoreOptions) (*RestoreResult, error) {
	logger := log.FromContext(ctx)
	if report == nil {
		report = lvm.NewReport()
	}
	if mismatched := report.MismatchedPools(); len(mismatched) > 0 {
		logger.Info("differing lv brick id / pool id", "count", len(mismatched), "lvs", mismatched)
		for range mismatched {
			e.metrics.Warning(metrics.WarningMismatchedLVPools)
		}
	}

	result := &RestoreResult{}
	var conflicts []error
	doc := e.idx.Document()
	for _, vid := range e.idx.SortedVolumeIDs() {
		vol := doc.Volumes[vid]
		logger.V(1).Info("checking volume for missing bricks", "volume", vid)

		paths, ok := listing[vol.Info.Name]
		if !ok {
			logger.Error(nil, "no entry for volume in gluster volume info, skipping", "volume", vid, "name", vol.Info.Name)
			e.metrics.VolumeSkipped()
			result.Skipped = append(result.Skipped, vid)
			continue
		}
		if vol.Info.Snapshot.Factor != topofix.SupportedSnapshotFactor {
			return result, fmt.Errorf("%w: volume %s has factor %v", ErrUnsupportedSnapshotFactor, vid, vol.Info.Snapshot.Factor)
		}

		missing := e.missingBricks(ctx, vol, paths)
		if missing.Len() == 0 {
			logger.V(1).Info("no missing bricks", "volume", vid)
			continue
		}
		if vol.Pending.ID != "" {
			logger.Error(nil, "volume with missing bricks is pending, leaving it alone",
				"volume", vid, "pending", vol.Pending.ID, "missing", sets.List(missing))
			conflicts = append(conflicts, fmt.Errorf("%w: %s (operation %s)", ErrPendingVolumeConflict, vid, vol.Pending.ID))
			result.Pending = append(result.Pending, vid)
			continue
		}
		logger.Info("missing bricks", "volume", vid, "bricks", sets.List(missing))

		restored, err := e.restoreVolume(ctx, vid, vol, paths, missing, report, opts)
		result.Restored = append(result.Restored, restored...)
		if err != nil {
			return result, err
		}
	}
	return result, errors.Join(conflicts...)
}

// missingBricks returns the ids of bricks gluster lists for vol that the
// volume does not, plus the ids the volume lists that have no record.
func (e *Engine) missingBricks(ctx context.Context, vol *topology.VolumeEntry, paths []string) sets.Set[string] {
	missing := sets.New[string]()
	for _, p := range paths {
		id, err := topology.BrickIDFromPath(p)
		if err != nil {
			e.warn(ctx, metrics.WarningMalformedPath, "skipping brick path", "path", p, "error", err.Error())
			continue
		}
		if !slices.Contains(vol.Bricks, id) {
			missing.Insert(id)
		}
	}
	for _, id := range vol.Bricks {
		if !e.idx.BrickExists(id) {
			missing.Insert(id)
		}
	}
	return missing
}

func (e *Engine) restoreVolume(
	ctx context.Context,
	vid string,
	vol *topology.VolumeEntry,
	paths []string,
	missing sets.Set[string],
	report *lvm.Report,
	opts RestoreOptions,
) ([]string, error) {
	logger := log.FromContext(ctx).WithValues("volume", vid)
	vsize := e.volumeSize(ctx, vid, vol)
	ids := sets.List(missing)

	var restored []string
	for _, p := range paths {
		if !slices.ContainsFunc(ids, func(id string) bool { return strings.Contains(p, id) }) {
			continue
		}
		logger.Info("attempting to restore brick", "path", p)
		loc, err := topology.ParseBrickPath(p)
		if err != nil {
			e.warn(ctx, metrics.WarningMalformedPath, "skipping brick path", "path", p, "error", err.Error())
			continue
		}

		b, err := e.brickForLocation(ctx, loc, opts.BrickSwap)
		if err != nil {
			return restored, err
		}
		b.SetVolumeAssignment(vid)
		if _, cloned := opts.BrickSwap[loc.BrickID]; !cloned {
			if err := e.deriveSizes(ctx, b, vsize, report); err != nil {
				return restored, err
			}
		}
		if pool, ok := report.PoolOf(b.ID()); !ok {
			e.warn(ctx, metrics.WarningThinPoolMismatch, "no thin pool found for brick", "brick", b.ID())
		} else if !b.SetThinPoolName(pool) {
			e.warn(ctx, metrics.WarningThinPoolMismatch, "saw differing thin pool name", "brick", b.ID(), "thin_pool", pool)
		}

		if err := e.insertBrick(ctx, vid, b, opts.IncreaseUsage); err != nil {
			return restored, err
		}
		restored = append(restored, b.ID())
		e.metrics.BrickRestored()
	}
	for _, id := range ids {
		if !slices.Contains(restored, id) {
			logger.Error(nil, "missing brick not found in gluster volume info", "brick", id)
		}
	}
	return restored, nil
}

// brickForLocation returns the record to write for the brick at loc: a
// copy of the existing record if there is one, or of the brick named by
// brickSwap, or a new empty record.
func (e *Engine) brickForLocation(ctx context.Context, loc topology.BrickLocation, brickSwap map[string]string) (*topology.BrickEntry, error) {
	nodeID, err := e.idx.ResolveNodeByAddress(loc.Address)
	if err != nil {
		return nil, fmt.Errorf("brick %s: %w", loc.BrickID, err)
	}
	if !e.idx.DeviceExists(loc.DeviceID) {
		return nil, fmt.Errorf("brick %s: %w: %s", loc.BrickID, topology.ErrUnknownDevice, loc.DeviceID)
	}

	if srcID, ok := brickSwap[loc.BrickID]; ok {
		src, err := e.idx.Brick(srcID)
		if err != nil {
			return nil, fmt.Errorf("source of brick %s: %w", loc.BrickID, err)
		}
		log.FromContext(ctx).Info("sourcing brick settings", "brick", loc.BrickID, "source", srcID)
		b := topology.NewBrickEntry(loc.BrickID, loc.DeviceID, nodeID)
		b.CopySizing(src)
		return b, nil
	}

	if existing, err := e.idx.Brick(loc.BrickID); err == nil {
		b := existing.Clone()
		b.SetLocation(loc.DeviceID, nodeID)
		return b, nil
	}
	return topology.NewBrickEntry(loc.BrickID, loc.DeviceID, nodeID), nil
}

// deriveSizes sets the sizes of b from its LV when LVM reports one, and
// from the volume size otherwise.
func (e *Engine) deriveSizes(ctx context.Context, b *topology.BrickEntry, vsize int, report *lvm.Report) error {
	if literal, ok := report.SizeOf(b.ID()); ok {
		size, err := lvm.ParseSize(literal)
		if err != nil {
			return fmt.Errorf("brick %s: %w", b.ID(), err)
		}
		meta, err := e.metadataSize(ctx, size, int(size/topofix.KiBPerGiB))
		if err != nil {
			return fmt.Errorf("brick %s: %w", b.ID(), err)
		}
		b.SetSizeFromLV(size, meta)
		return nil
	}

	meta, err := e.metadataSize(ctx, uint64(vsize)*topofix.KiBPerGiB, vsize)
	if err != nil {
		return fmt.Errorf("brick %s: %w", b.ID(), err)
	}
	b.SetSizeFromVolume(vsize, meta)
	return nil
}

func (e *Engine) metadataSize(ctx context.Context, size uint64, sizeGiB int) (uint64, error) {
	meta, err := e.sizer.MetadataSize(size)
	if err != nil {
		return 0, err
	}
	if mismatch := e.sizer.Check(sizeGiB, meta); mismatch != nil {
		e.warn(ctx, metrics.WarningMetadataMismatch, "pool metadata size not as expected",
			"size", size, "got", mismatch.Got, "expected", mismatch.Expected)
	}
	return meta, nil
}

// insertBrick writes b and links it into its volume and device. The device
// is only debited when the brick is new to its list.
func (e *Engine) insertBrick(ctx context.Context, vid string, b *topology.BrickEntry, increaseUsage bool) error {
	logger := log.FromContext(ctx)
	if prev, err := e.idx.Brick(b.ID()); err == nil {
		if err := e.moveOffPrevious(ctx, prev, b, vid, increaseUsage); err != nil {
			return err
		}
	}
	e.idx.PutBrick(b)

	added, err := e.idx.AttachToVolume(vid, b.ID())
	if err != nil {
		return err
	}
	if added {
		logger.Info("adding brick to volume", "brick", b.ID(), "volume", vid)
	}

	deviceID := b.Info.Device
	added, err = e.idx.AttachToDevice(deviceID, b.ID())
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	logger.Info("adding brick to device", "brick", b.ID(), "device", deviceID)
	if increaseUsage {
		return e.idx.Debit(ctx, deviceID, b.Footprint())
	}
	return nil
}

// moveOffPrevious unlinks the brick from the device and volume its previous
// record named when b places it elsewhere.
func (e *Engine) moveOffPrevious(ctx context.Context, prev, b *topology.BrickEntry, vid string, increaseUsage bool) error {
	logger := log.FromContext(ctx)
	if prev.Info.Device != b.Info.Device {
		removed, err := e.idx.DetachFromDevice(prev.Info.Device, b.ID())
		if err == nil && removed {
			logger.Info("moving brick off its recorded device", "brick", b.ID(), "device", prev.Info.Device)
			if increaseUsage {
				if err := e.idx.Credit(ctx, prev.Info.Device, prev.Footprint()); err != nil {
					return err
				}
			}
		}
	}
	if prev.Info.Volume != vid {
		removed, err := e.idx.DetachFromVolume(prev.Info.Volume, b.ID())
		if err == nil && removed {
			logger.Info("moving brick off its recorded volume", "brick", b.ID(), "volume", prev.Info.Volume)
		}
	}
	return nil
}
