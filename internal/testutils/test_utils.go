package testutils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/topolvm/topofix"
	"github.com/topolvm/topofix/internal/topology"
)

// Builder assembles small heketi documents for tests.
type Builder struct {
	Doc *topology.Document
}

// NewBuilder returns a builder holding one cluster named clusterID.
func NewBuilder(clusterID string) *Builder {
	doc := &topology.Document{
		Clusters: map[string]*topology.ClusterEntry{},
		Volumes:  map[string]*topology.VolumeEntry{},
		Bricks:   map[string]*topology.BrickEntry{},
		Nodes:    map[string]*topology.NodeEntry{},
		Devices:  map[string]*topology.DeviceEntry{},
	}
	b := &Builder{Doc: doc}
	b.Cluster(clusterID)
	return b
}

// Cluster adds an empty cluster.
func (b *Builder) Cluster(id string) *Builder {
	b.Doc.Clusters[id] = &topology.ClusterEntry{Info: topology.ClusterInfo{
		ID:           id,
		Nodes:        []string{},
		Volumes:      []string{},
		File:         true,
		BlockVolumes: []string{},
	}}
	return b
}

// Node adds a node in cluster with the given address on both planes.
func (b *Builder) Node(cluster, id, addr string) *Builder {
	b.Doc.Nodes[id] = &topology.NodeEntry{
		State: json.RawMessage(`"online"`),
		Info: topology.NodeInfo{
			Zone:      1,
			Hostnames: topology.HostAddresses{Manage: []string{addr}, Storage: []string{addr}},
			Cluster:   cluster,
			ID:        id,
		},
		Devices: []string{},
	}
	c := b.Doc.Clusters[cluster]
	c.Info.Nodes = append(c.Info.Nodes, id)
	return b
}

// Device adds a device on node with the given capacity split.
func (b *Builder) Device(node, id string, used, free int64) *Builder {
	b.Doc.Devices[id] = &topology.DeviceEntry{
		State: json.RawMessage(`"online"`),
		Info: topology.DeviceInfo{
			Name:    "/dev/" + id,
			Storage: topology.StorageSize{Total: used + free, Free: free, Used: used},
			ID:      id,
		},
		Bricks:     []string{},
		NodeID:     node,
		ExtentSize: topofix.ExtentSize,
	}
	n := b.Doc.Nodes[node]
	n.Devices = append(n.Devices, id)
	return b
}

// Volume adds a volume of sizeGiB with snapshot factor 1.
func (b *Builder) Volume(cluster, id, name string, sizeGiB int) *Builder {
	b.Doc.Volumes[id] = &topology.VolumeEntry{
		Info: topology.VolumeInfo{
			Size:       sizeGiB,
			Name:       name,
			Durability: json.RawMessage(`{"type":"replicate","replicate":{"replica":3},"disperse":{}}`),
			Snapshot:   topology.SnapshotInfo{Enable: true, Factor: 1},
			ID:         id,
			Cluster:    cluster,
		},
		Bricks:               []string{},
		GlusterVolumeOptions: []string{},
	}
	c := b.Doc.Clusters[cluster]
	c.Info.Volumes = append(c.Info.Volumes, id)
	return b
}

// Brick adds a brick on device for volume and accounts it as used space
// already present in the device counters.
func (b *Builder) Brick(volume, device, id string, tpSize, pmdSize uint64, pool string) *Builder {
	d := b.Doc.Devices[device]
	br := topology.NewBrickEntry(id, device, d.NodeID)
	br.SetVolumeAssignment(volume)
	br.Info.Size = tpSize
	br.TpSize = tpSize
	br.PoolMetadataSize = pmdSize
	br.LvmThinPool = pool
	b.Doc.Bricks[id] = br
	d.Bricks = append(d.Bricks, id)
	v := b.Doc.Volumes[volume]
	v.Bricks = append(v.Bricks, id)
	return b
}

// Encode serializes doc, failing the test on error.
func Encode(t *testing.T, doc *topology.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
