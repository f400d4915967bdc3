package topology

import (
	"fmt"
	"slices"
)

// Index wraps a Document with the lookups the repair operations need. Every
// change to a device or volume brick list goes through the Index so the
// brick records and their back-references move together.
type Index struct {
	doc        *Document
	nodeByAddr map[string]string
}

// NewIndex builds an Index over doc. The Index does not copy doc; mutations
// made through it are visible in doc.
func NewIndex(doc *Document) *Index {
	idx := &Index{
		doc:        doc,
		nodeByAddr: make(map[string]string),
	}
	// Map iteration is unordered, so walk node ids sorted to keep the
	// last-match rule for duplicated addresses deterministic.
	for _, id := range sortedKeys(doc.Nodes) {
		n := doc.Nodes[id]
		nodeID := n.Info.ID
		if nodeID == "" {
			nodeID = id
		}
		for _, addr := range n.Info.Hostnames.Storage {
			idx.nodeByAddr[addr] = nodeID
		}
		for _, addr := range n.Info.Hostnames.Manage {
			idx.nodeByAddr[addr] = nodeID
		}
	}
	return idx
}

// Document returns the indexed document.
func (x *Index) Document() *Document {
	return x.doc
}

func (x *Index) DeviceExists(id string) bool {
	_, ok := x.doc.Devices[id]
	return ok
}

func (x *Index) BrickExists(id string) bool {
	_, ok := x.doc.Bricks[id]
	return ok
}

func (x *Index) VolumeExists(id string) bool {
	_, ok := x.doc.Volumes[id]
	return ok
}

// ResolveNodeByAddress returns the id of the node that has addr as a
// management or storage address. When several nodes claim addr, the last
// one in node id order wins.
func (x *Index) ResolveNodeByAddress(addr string) (string, error) {
	id, ok := x.nodeByAddr[addr]
	if !ok {
		return "", fmt.Errorf("%w: no node with address %s", ErrUnknownNode, addr)
	}
	return id, nil
}

// Device returns the device with the given id.
func (x *Index) Device(id string) (*DeviceEntry, error) {
	d, ok := x.doc.Devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d, nil
}

// Brick returns the brick with the given id.
func (x *Index) Brick(id string) (*BrickEntry, error) {
	b, ok := x.doc.Bricks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBrick, id)
	}
	return b, nil
}

// Volume returns the volume with the given id.
func (x *Index) Volume(id string) (*VolumeEntry, error) {
	v, ok := x.doc.Volumes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVolume, id)
	}
	return v, nil
}

// DeviceNode returns the id of the node hosting the device.
func (x *Index) DeviceNode(deviceID string) (string, error) {
	d, err := x.Device(deviceID)
	if err != nil {
		return "", err
	}
	return d.NodeID, nil
}

// PutBrick stores b under its id, replacing any previous record.
func (x *Index) PutBrick(b *BrickEntry) {
	x.doc.Bricks[b.ID()] = b
}

// DeleteBrick removes the brick record and returns it. Lists referencing
// the brick are left alone.
func (x *Index) DeleteBrick(id string) (*BrickEntry, error) {
	b, err := x.Brick(id)
	if err != nil {
		return nil, err
	}
	delete(x.doc.Bricks, id)
	return b, nil
}

// AttachToDevice appends brickID to the device's brick list unless it is
// already there. It reports whether the list changed.
func (x *Index) AttachToDevice(deviceID, brickID string) (bool, error) {
	d, err := x.Device(deviceID)
	if err != nil {
		return false, err
	}
	if slices.Contains(d.Bricks, brickID) {
		return false, nil
	}
	d.Bricks = append(d.Bricks, brickID)
	return true, nil
}

// DetachFromDevice removes brickID from the device's brick list and
// reports whether it was present.
func (x *Index) DetachFromDevice(deviceID, brickID string) (bool, error) {
	d, err := x.Device(deviceID)
	if err != nil {
		return false, err
	}
	var removed bool
	d.Bricks, removed = remove(d.Bricks, brickID)
	return removed, nil
}

// AttachToVolume appends brickID to the volume's brick list unless it is
// already there. It reports whether the list changed.
func (x *Index) AttachToVolume(volumeID, brickID string) (bool, error) {
	v, err := x.Volume(volumeID)
	if err != nil {
		return false, err
	}
	if slices.Contains(v.Bricks, brickID) {
		return false, nil
	}
	v.Bricks = append(v.Bricks, brickID)
	return true, nil
}

// DetachFromVolume removes brickID from the volume's brick list and
// reports whether it was present.
func (x *Index) DetachFromVolume(volumeID, brickID string) (bool, error) {
	v, err := x.Volume(volumeID)
	if err != nil {
		return false, err
	}
	var removed bool
	v.Bricks, removed = remove(v.Bricks, brickID)
	return removed, nil
}

// DetachEverywhere removes brickID from every device and volume list that
// mentions it, whatever the brick record claims. It returns the ids of the
// devices and volumes that were changed, sorted.
func (x *Index) DetachEverywhere(brickID string) (devices, volumes []string) {
	for id, v := range x.doc.Volumes {
		var removed bool
		if v.Bricks, removed = remove(v.Bricks, brickID); removed {
			volumes = append(volumes, id)
		}
	}
	for id, d := range x.doc.Devices {
		var removed bool
		if d.Bricks, removed = remove(d.Bricks, brickID); removed {
			devices = append(devices, id)
		}
	}
	slices.Sort(devices)
	slices.Sort(volumes)
	return devices, volumes
}

// AddVolume stores a volume and appends it to its cluster's volume list.
func (x *Index) AddVolume(v *VolumeEntry) error {
	c, ok := x.doc.Clusters[v.Info.Cluster]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCluster, v.Info.Cluster)
	}
	x.doc.Volumes[v.Info.ID] = v
	if !slices.Contains(c.Info.Volumes, v.Info.ID) {
		c.Info.Volumes = append(c.Info.Volumes, v.Info.ID)
	}
	return nil
}

// SortedVolumeIDs returns all volume ids in lexical order.
func (x *Index) SortedVolumeIDs() []string {
	return sortedKeys(x.doc.Volumes)
}

// remove deletes every occurrence of id from list, keeping order.
func remove(list []string, id string) ([]string, bool) {
	n := len(list)
	list = slices.DeleteFunc(list, func(s string) bool { return s == id })
	return list, len(list) != n
}
