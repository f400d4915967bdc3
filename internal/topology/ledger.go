package topology

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Debit moves size bytes of the device's capacity from free to used.
// Free is allowed to go negative so an operator can force a placement;
// that case is logged.
func (x *Index) Debit(ctx context.Context, deviceID string, size uint64) error {
	d, err := x.Device(deviceID)
	if err != nil {
		return err
	}
	d.Info.Storage.Free -= int64(size)
	d.Info.Storage.Used += int64(size)
	if d.Info.Storage.Free < 0 {
		log.FromContext(ctx).Info("warning: device free space is negative",
			"device", deviceID,
			"free", d.Info.Storage.Free,
			"used", d.Info.Storage.Used,
		)
	}
	return nil
}

// Credit moves size bytes of the device's capacity from used to free.
func (x *Index) Credit(ctx context.Context, deviceID string, size uint64) error {
	d, err := x.Device(deviceID)
	if err != nil {
		return err
	}
	d.Info.Storage.Free += int64(size)
	d.Info.Storage.Used -= int64(size)
	if d.Info.Storage.Used < 0 {
		log.FromContext(ctx).Info("warning: device used space is negative",
			"device", deviceID,
			"free", d.Info.Storage.Free,
			"used", d.Info.Storage.Used,
		)
	}
	return nil
}

// Transfer accounts size bytes as moved from one device to another.
// Both devices are checked before either is changed.
func (x *Index) Transfer(ctx context.Context, from, to string, size uint64) error {
	if _, err := x.Device(from); err != nil {
		return err
	}
	if _, err := x.Device(to); err != nil {
		return err
	}
	if err := x.Credit(ctx, from, size); err != nil {
		return err
	}
	return x.Debit(ctx, to, size)
}

// TotalCapacity returns the sum of used and free over all devices. No
// repair operation changes it.
func (x *Index) TotalCapacity() int64 {
	var total int64
	for _, d := range x.doc.Devices {
		total += d.Info.Storage.Used + d.Info.Storage.Free
	}
	return total
}
