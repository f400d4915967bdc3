package topology

import (
	"errors"
	"fmt"
	"slices"
)

// Verify checks that brick records and the device and volume lists that
// reference them agree. It returns every violation found, joined, or nil.
func (x *Index) Verify() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInconsistent}, args...)...))
	}

	for _, id := range sortedKeys(x.doc.Devices) {
		d := x.doc.Devices[id]
		if _, ok := x.doc.Nodes[d.NodeID]; !ok {
			add("device %s belongs to missing node %s", id, d.NodeID)
		}
		for _, bid := range d.Bricks {
			b, ok := x.doc.Bricks[bid]
			if !ok {
				add("device %s lists missing brick %s", id, bid)
				continue
			}
			if b.Info.Device != id {
				add("device %s lists brick %s owned by device %s", id, bid, b.Info.Device)
			}
		}
	}

	for _, id := range sortedKeys(x.doc.Volumes) {
		v := x.doc.Volumes[id]
		if _, ok := x.doc.Clusters[v.Info.Cluster]; !ok {
			add("volume %s belongs to missing cluster %s", id, v.Info.Cluster)
		}
		for _, bid := range v.Bricks {
			b, ok := x.doc.Bricks[bid]
			if !ok {
				add("volume %s lists missing brick %s", id, bid)
				continue
			}
			if b.Info.Volume != id {
				add("volume %s lists brick %s owned by volume %s", id, bid, b.Info.Volume)
			}
		}
	}

	for _, id := range sortedKeys(x.doc.Bricks) {
		b := x.doc.Bricks[id]
		if b.Info.ID != id {
			add("brick %s is stored under key %s", b.Info.ID, id)
		}
		d, ok := x.doc.Devices[b.Info.Device]
		switch {
		case !ok:
			add("brick %s is on missing device %s", id, b.Info.Device)
		case !slices.Contains(d.Bricks, id):
			add("brick %s is not listed by its device %s", id, b.Info.Device)
		case d.NodeID != b.Info.Node:
			add("brick %s claims node %s but device %s is on node %s", id, b.Info.Node, b.Info.Device, d.NodeID)
		}
		v, ok := x.doc.Volumes[b.Info.Volume]
		switch {
		case !ok:
			add("brick %s belongs to missing volume %s", id, b.Info.Volume)
		case !slices.Contains(v.Bricks, id):
			add("brick %s is not listed by its volume %s", id, b.Info.Volume)
		}
		if _, ok := x.doc.Nodes[b.Info.Node]; !ok {
			add("brick %s is on missing node %s", id, b.Info.Node)
		}
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
