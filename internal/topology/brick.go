package topology

import (
	"maps"
	"strings"

	"github.com/topolvm/topofix"
)

// NewBrickEntry returns a brick record placed on deviceID at the standard
// heketi mount path. Sizes and volume assignment are set separately.
func NewBrickEntry(id, deviceID, nodeID string) *BrickEntry {
	b := &BrickEntry{SubType: 1}
	b.Info.ID = id
	b.SetLocation(deviceID, nodeID)
	return b
}

// ID returns the brick id.
func (b *BrickEntry) ID() string {
	return b.Info.ID
}

// Footprint is the device capacity the brick consumes.
func (b *BrickEntry) Footprint() uint64 {
	return b.TpSize + b.PoolMetadataSize
}

// Clone returns a deep copy of the brick.
func (b *BrickEntry) Clone() *BrickEntry {
	c := *b
	c.Extra = maps.Clone(b.Extra)
	c.Info.Extra = maps.Clone(b.Info.Extra)
	return &c
}

// ThinPoolBacked reports whether the brick lives in a named thin pool.
func (b *BrickEntry) ThinPoolBacked() bool {
	return b.LvmThinPool != ""
}

// Rename gives the brick a new identity and recomputes its path.
func (b *BrickEntry) Rename(id string) {
	b.Info.ID = id
	b.Info.Path = topofix.BrickPath(b.Info.Device, id)
}

// SetLocation moves the brick to deviceID on nodeID and recomputes its path.
func (b *BrickEntry) SetLocation(deviceID, nodeID string) {
	b.Info.Device = deviceID
	b.Info.Node = nodeID
	b.Info.Path = topofix.BrickPath(deviceID, b.Info.ID)
}

// SetVolumeAssignment records the volume the brick belongs to.
func (b *BrickEntry) SetVolumeAssignment(volumeID string) {
	b.Info.Volume = volumeID
}

// SetSizeFromVolume derives the brick size from its volume size in GiB.
// It only applies to bricks whose size is still unset and reports whether
// anything changed.
func (b *BrickEntry) SetSizeFromVolume(sizeGiB int, poolMetadataSize uint64) bool {
	if b.Info.Size != 0 {
		return false
	}
	b.Info.Size = uint64(sizeGiB) * topofix.KiBPerGiB
	b.TpSize = b.Info.Size
	b.PoolMetadataSize = poolMetadataSize
	return true
}

// SetSizeFromLV sets the brick sizes from the size LVM reports for its LV.
func (b *BrickEntry) SetSizeFromLV(size, poolMetadataSize uint64) {
	b.Info.Size = size
	b.TpSize = size
	b.PoolMetadataSize = poolMetadataSize
}

// CopySizing takes the size, thin pool size, and metadata size of src.
// The thin pool name is cleared; it belongs to src's pool, not this brick's.
func (b *BrickEntry) CopySizing(src *BrickEntry) {
	b.Info.Size = src.Info.Size
	b.TpSize = src.TpSize
	b.PoolMetadataSize = src.PoolMetadataSize
	b.LvmThinPool = ""
	b.Info.Volume = src.Info.Volume
}

// SetThinPoolName sets the thin pool of the brick and reports whether the
// pool name contains the brick id, as heketi-created pools do.
func (b *BrickEntry) SetThinPoolName(name string) bool {
	b.LvmThinPool = name
	return strings.Contains(name, b.Info.ID)
}
