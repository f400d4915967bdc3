package repair

import (
	"context"
	"fmt"
	"slices"

	"github.com/topolvm/topofix/internal/metrics"
	"github.com/topolvm/topofix/internal/topology"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// SwapBrick replaces brick oldBrickID on oldDeviceID with a new brick
// newBrickID on newDeviceID. The new brick inherits the volume and sizes of
// the old one. Thin-pool backed bricks take their pool name from
// thinPools, keyed by brick id.
//
// Every precondition is checked before the document is touched, so a
// failed swap leaves it unchanged.
func (e *Engine) SwapBrick(ctx context.Context, oldDeviceID, oldBrickID, newDeviceID, newBrickID string, thinPools map[string]string) error {
	logger := log.FromContext(ctx).WithValues("old_brick", oldBrickID, "new_brick", newBrickID)

	oldDevice, err := e.idx.Device(oldDeviceID)
	if err != nil {
		return err
	}
	newNodeID, err := e.idx.DeviceNode(newDeviceID)
	if err != nil {
		return err
	}
	old, err := e.idx.Brick(oldBrickID)
	if err != nil {
		return err
	}
	if e.idx.BrickExists(newBrickID) {
		return fmt.Errorf("%w: can not use existing brick id %s", topology.ErrBrickIDCollision, newBrickID)
	}
	if !slices.Contains(oldDevice.Bricks, oldBrickID) {
		return fmt.Errorf("%w: brick %s is not on device %s", topology.ErrUnknownBrick, oldBrickID, oldDeviceID)
	}
	volumeID := old.Info.Volume
	if !e.idx.VolumeExists(volumeID) {
		return fmt.Errorf("%w: %s, volume of brick %s", topology.ErrUnknownVolume, volumeID, oldBrickID)
	}

	nb := old.Clone()
	nb.Rename(newBrickID)
	nb.SetLocation(newDeviceID, newNodeID)
	if old.ThinPoolBacked() {
		pool, ok := thinPools[newBrickID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrThinPoolUnresolved, newBrickID)
		}
		if !nb.SetThinPoolName(pool) {
			e.warn(ctx, metrics.WarningThinPoolMismatch, "thin pool name does not contain brick id",
				"brick", newBrickID, "thin_pool", pool)
		}
	}

	logger.Info("swapping brick", "old_device", oldDeviceID, "new_device", newDeviceID, "volume", volumeID)

	// stitch in the new brick
	e.idx.PutBrick(nb)
	if _, err := e.idx.AttachToDevice(newDeviceID, newBrickID); err != nil {
		return err
	}
	if _, err := e.idx.AttachToVolume(volumeID, newBrickID); err != nil {
		return err
	}

	// remove the old brick
	if _, err := e.idx.DeleteBrick(oldBrickID); err != nil {
		return err
	}
	if _, err := e.idx.DetachFromDevice(oldDeviceID, oldBrickID); err != nil {
		return err
	}
	if _, err := e.idx.DetachFromVolume(volumeID, oldBrickID); err != nil {
		return err
	}

	if err := e.idx.Transfer(ctx, oldDeviceID, newDeviceID, nb.Footprint()); err != nil {
		return err
	}
	e.metrics.BrickSwapped()
	return nil
}
