package loader

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// ParsePersistentVolumes decodes a PersistentVolume list as printed by
// `kubectl get pv -o yaml`.
func ParsePersistentVolumes(data []byte) ([]corev1.PersistentVolume, error) {
	var list corev1.PersistentVolumeList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode persistent volumes: %w", err)
	}
	return list.Items, nil
}
