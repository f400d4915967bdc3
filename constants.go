package topofix

import "fmt"

// Version is the version of topofix, set at build time.
var Version = "devel"

// ExtentSize is the LVM allocation granularity that pool metadata sizes align to.
const ExtentSize = 4096

// MaxPoolMetadataSize caps the thin pool metadata allocation.
const MaxPoolMetadataSize = 16 * 1024 * 1024

// PoolMetadataDivisor sizes pool metadata at 0.5% of the thin pool.
const PoolMetadataDivisor = 200

// KiBPerGiB converts a volume size in GiB to the KiB units used by brick records.
const KiBPerGiB = 1024 * 1024

// BrickMountRoot is the directory under which heketi mounts bricks on storage nodes.
const BrickMountRoot = "/var/lib/heketi/mounts"

// DeviceVGPrefix is the prefix of the volume group name heketi creates for a device.
const DeviceVGPrefix = "vg_"

// BrickLVPrefix is the prefix of the logical volume and directory heketi creates for a brick.
const BrickLVPrefix = "brick_"

// ThinPoolPrefix is the prefix of the thin pool LV heketi creates for a brick.
const ThinPoolPrefix = "tp_"

// HeketiVolumeIDAnnotation is the PersistentVolume annotation holding the heketi volume id.
const HeketiVolumeIDAnnotation = "gluster.kubernetes.io/heketi-volume-id"

// GidAnnotation is the PersistentVolume annotation holding the volume group id.
const GidAnnotation = "pv.beta.kubernetes.io/gid"

// DefaultReplicaCount is the replica count of volumes synthesized from PersistentVolumes.
const DefaultReplicaCount = 3

// SupportedSnapshotFactor is the only snapshot factor brick sizes can be derived for.
const SupportedSnapshotFactor = 1

// BrickPath returns the mount path of a brick on its node.
func BrickPath(deviceID, brickID string) string {
	return fmt.Sprintf("%s/%s%s/%s%s/brick", BrickMountRoot, DeviceVGPrefix, deviceID, BrickLVPrefix, brickID)
}

// BrickLVName returns the logical volume name of a brick.
func BrickLVName(brickID string) string {
	return BrickLVPrefix + brickID
}
