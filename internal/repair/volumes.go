package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/topolvm/topofix"
	"github.com/topolvm/topofix/internal/topology"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const gib = 1 << 30

type replicateDurability struct {
	Type      string `json:"type"`
	Replicate struct {
		Replica int `json:"replica"`
	} `json:"replicate"`
	Disperse struct{} `json:"disperse"`
}

type glusterfsMount struct {
	Hosts   []string          `json:"hosts"`
	Device  string            `json:"device"`
	Options map[string]string `json:"options"`
}

// RestoreVolumes re-creates the volume records of the named gluster
// volumes from their persistent volumes. The heketi volume id comes from
// the PV annotations and the size from its capacity. The re-created
// volumes have no bricks; RestoreBricks fills them in.
//
// The document must hold exactly one cluster.
func (e *Engine) RestoreVolumes(ctx context.Context, pvs []corev1.PersistentVolume, names []string) ([]string, error) {
	logger := log.FromContext(ctx)
	doc := e.idx.Document()
	if len(doc.Clusters) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrMultiClusterUnsupported, len(doc.Clusters))
	}
	var clusterID string
	for id := range doc.Clusters {
		clusterID = id
	}

	byPath := make(map[string]*corev1.PersistentVolume)
	for i := range pvs {
		pv := &pvs[i]
		if pv.Spec.Glusterfs == nil {
			continue
		}
		logger.V(1).Info("found gluster volume in pv", "pv", pv.Name, "path", pv.Spec.Glusterfs.Path)
		byPath[pv.Spec.Glusterfs.Path] = pv
	}

	var created []string
	for _, name := range names {
		pv, ok := byPath[name]
		if !ok {
			return created, fmt.Errorf("%w: no persistent volume for gluster volume %s", topology.ErrUnknownVolume, name)
		}
		v, err := e.volumeFromPV(clusterID, name, pv)
		if err != nil {
			return created, err
		}
		if e.idx.VolumeExists(v.Info.ID) {
			logger.Info("volume already present, not re-creating it", "volume", v.Info.ID, "name", name)
			continue
		}
		if err := e.idx.AddVolume(v); err != nil {
			return created, err
		}
		logger.Info("re-created volume", "volume", v.Info.ID, "name", name, "size", v.Info.Size)
		created = append(created, v.Info.ID)
		e.metrics.VolumeRestored()
	}
	return created, nil
}

func (e *Engine) volumeFromPV(clusterID, name string, pv *corev1.PersistentVolume) (*topology.VolumeEntry, error) {
	id, ok := pv.Annotations[topofix.HeketiVolumeIDAnnotation]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: pv %s for volume %s", ErrMissingAnnotation, pv.Name, name)
	}
	var gid int64
	if s, ok := pv.Annotations[topofix.GidAnnotation]; ok {
		var err error
		gid, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pv %s: invalid gid %q: %w", pv.Name, s, err)
		}
	}
	capacity, ok := pv.Spec.Capacity[corev1.ResourceStorage]
	if !ok {
		return nil, fmt.Errorf("pv %s has no storage capacity", pv.Name)
	}
	size := int((capacity.Value() + gib - 1) / gib)

	durability := replicateDurability{Type: "replicate"}
	durability.Replicate.Replica = topofix.DefaultReplicaCount
	durabilityJSON, err := json.Marshal(durability)
	if err != nil {
		return nil, err
	}

	hosts := e.clusterHosts(clusterID)
	mount := glusterfsMount{Hosts: hosts, Options: map[string]string{}}
	if len(hosts) > 0 {
		mount.Device = hosts[0] + ":" + name
		if len(hosts) > 1 {
			mount.Options["backup-volfile-servers"] = strings.Join(hosts[1:], ",")
		}
	}
	mountJSON, err := json.Marshal(map[string]glusterfsMount{"glusterfs": mount})
	if err != nil {
		return nil, err
	}

	return &topology.VolumeEntry{
		Info: topology.VolumeInfo{
			Size:       size,
			Name:       name,
			Durability: durabilityJSON,
			Gid:        gid,
			Snapshot:   topology.SnapshotInfo{Enable: true, Factor: topofix.SupportedSnapshotFactor},
			ID:         id,
			Cluster:    clusterID,
			Mount:      mountJSON,
			BlockInfo:  json.RawMessage(`{}`),
		},
		Bricks:               []string{},
		GlusterVolumeOptions: []string{},
	}, nil
}

// clusterHosts returns the first storage address of each node of the
// cluster, in cluster node order.
func (e *Engine) clusterHosts(clusterID string) []string {
	doc := e.idx.Document()
	var hosts []string
	for _, nodeID := range doc.Clusters[clusterID].Info.Nodes {
		n, ok := doc.Nodes[nodeID]
		if !ok || len(n.Info.Hostnames.Storage) == 0 {
			continue
		}
		hosts = append(hosts, n.Info.Hostnames.Storage[0])
	}
	return hosts
}
