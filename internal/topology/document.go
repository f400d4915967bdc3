package topology

import (
	"encoding/json"
	"fmt"
	"io"
)

// Document is a heketi database export. Sub-trees topofix never edits are
// kept as raw JSON so they survive a load/encode cycle untouched.
type Document struct {
	Clusters          map[string]*ClusterEntry   `json:"clusterentries"`
	Volumes           map[string]*VolumeEntry    `json:"volumeentries"`
	BlockVolumes      map[string]json.RawMessage `json:"blockvolumeentries,omitempty"`
	Bricks            map[string]*BrickEntry     `json:"brickentries"`
	Nodes             map[string]*NodeEntry      `json:"nodeentries"`
	Devices           map[string]*DeviceEntry    `json:"deviceentries"`
	DbAttributes      map[string]json.RawMessage `json:"dbattributeentries,omitempty"`
	PendingOperations map[string]json.RawMessage `json:"pendingoperations,omitempty"`

	Extra Extra `json:"-"`
}

type ClusterEntry struct {
	Info ClusterInfo `json:"Info"`

	Extra Extra `json:"-"`
}

type ClusterInfo struct {
	ID           string   `json:"id"`
	Nodes        []string `json:"nodes"`
	Volumes      []string `json:"volumes"`
	Block        bool     `json:"block"`
	File         bool     `json:"file"`
	BlockVolumes []string `json:"blockvolumes"`

	Extra Extra `json:"-"`
}

type NodeEntry struct {
	State   json.RawMessage `json:"State,omitempty"`
	Info    NodeInfo        `json:"Info"`
	Devices []string        `json:"Devices"`

	Extra Extra `json:"-"`
}

type NodeInfo struct {
	Zone      int               `json:"zone"`
	Hostnames HostAddresses     `json:"hostnames"`
	Cluster   string            `json:"cluster"`
	Tags      map[string]string `json:"tags,omitempty"`
	ID        string            `json:"id"`

	Extra Extra `json:"-"`
}

// HostAddresses holds the management and storage plane addresses of a node.
type HostAddresses struct {
	Manage  []string `json:"manage"`
	Storage []string `json:"storage"`
}

type DeviceEntry struct {
	State      json.RawMessage `json:"State,omitempty"`
	Info       DeviceInfo      `json:"Info"`
	Bricks     []string        `json:"Bricks"`
	NodeID     string          `json:"NodeId"`
	ExtentSize uint64          `json:"ExtentSize,omitempty"`

	Extra Extra `json:"-"`
}

type DeviceInfo struct {
	Name    string            `json:"name"`
	Storage StorageSize       `json:"storage"`
	ID      string            `json:"id"`
	Paths   []string          `json:"paths,omitempty"`
	PVUUID  string            `json:"pv_uuid,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`

	Extra Extra `json:"-"`
}

// StorageSize is the capacity accounting of a device. Free and Used are
// signed so an over-committed device stays visible instead of wrapping.
type StorageSize struct {
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
	Used  int64 `json:"used"`

	Extra Extra `json:"-"`
}

type VolumeEntry struct {
	Info                 VolumeInfo  `json:"Info"`
	Bricks               []string    `json:"Bricks"`
	GlusterVolumeOptions []string    `json:"GlusterVolumeOptions"`
	Pending              PendingInfo `json:"Pending"`

	Extra Extra `json:"-"`
}

type VolumeInfo struct {
	Size       int             `json:"size"`
	Name       string          `json:"name"`
	Durability json.RawMessage `json:"durability,omitempty"`
	Gid        int64           `json:"gid"`
	Snapshot   SnapshotInfo    `json:"snapshot"`
	ID         string          `json:"id"`
	Cluster    string          `json:"cluster"`
	Mount      json.RawMessage `json:"mount,omitempty"`
	BlockInfo  json.RawMessage `json:"blockinfo,omitempty"`

	Extra Extra `json:"-"`
}

type SnapshotInfo struct {
	Enable bool    `json:"enable"`
	Factor float64 `json:"factor"`
}

// PendingInfo marks an entry that takes part in an in-flight heketi operation.
type PendingInfo struct {
	ID string `json:"Id"`
}

type BrickEntry struct {
	Info             BrickInfo   `json:"Info"`
	TpSize           uint64      `json:"TpSize"`
	PoolMetadataSize uint64      `json:"PoolMetadataSize"`
	Pending          PendingInfo `json:"Pending"`
	LvmThinPool      string      `json:"LvmThinPool"`
	LvmLv            string      `json:"LvmLv"`
	SubType          int         `json:"SubType"`

	Extra Extra `json:"-"`
}

type BrickInfo struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Device string `json:"device"`
	Node   string `json:"node"`
	Volume string `json:"volume"`
	Size   uint64 `json:"size"`

	Extra Extra `json:"-"`
}

// Decode reads a heketi JSON export.
func Decode(r io.Reader) (*Document, error) {
	doc := new(Document)
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode heketi db json: %w", err)
	}
	if doc.Clusters == nil {
		doc.Clusters = map[string]*ClusterEntry{}
	}
	if doc.Volumes == nil {
		doc.Volumes = map[string]*VolumeEntry{}
	}
	if doc.Bricks == nil {
		doc.Bricks = map[string]*BrickEntry{}
	}
	if doc.Nodes == nil {
		doc.Nodes = map[string]*NodeEntry{}
	}
	if doc.Devices == nil {
		doc.Devices = map[string]*DeviceEntry{}
	}
	return doc, nil
}

// Encode writes the document in the indented layout of heketi's own export.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(d)
}
