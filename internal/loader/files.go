package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/topolvm/topofix/internal/lvm"
	"github.com/topolvm/topofix/internal/topology"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// LoadDocument reads a heketi JSON export from path.
func LoadDocument(ctx context.Context, path string) (*topology.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := topology.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.FromContext(ctx).Info("heketi db loaded",
		"file_name", path,
		"clusters", len(doc.Clusters),
		"volumes", len(doc.Volumes),
		"bricks", len(doc.Bricks),
	)
	return doc, nil
}

// LoadVolumeInfo reads `gluster volume info` output from path.
func LoadVolumeInfo(ctx context.Context, path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vols, err := ParseVolumeInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.FromContext(ctx).Info("gluster volume info loaded", "file_name", path, "volumes", len(vols))
	return vols, nil
}

// LoadLVMReport reads and merges lvs JSON reports from every path.
func LoadLVMReport(ctx context.Context, paths ...string) (*lvm.Report, error) {
	var all []lvm.LogicalVolume
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		lvs, err := lvm.ParseReport(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.FromContext(ctx).Info("lvs report loaded", "file_name", path, "logical_volumes", len(lvs))
		all = append(all, lvs...)
	}
	return lvm.NewReport(all...), nil
}

// LoadSwapFile reads swap specs from path.
func LoadSwapFile(path string) ([]SwapSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	specs, err := ParseSwapFile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// LoadBrickSwapMap reads a brick swap map from path.
func LoadBrickSwapMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ParseBrickSwapMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadPersistentVolumes reads a PersistentVolume list from path.
func LoadPersistentVolumes(path string) ([]corev1.PersistentVolume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePersistentVolumes(data)
}
