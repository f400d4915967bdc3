package repair_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/topolvm/topofix"
	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/testutils"
	"github.com/topolvm/topofix/internal/topology"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func glusterPV(name, path, volumeID, size string) corev1.PersistentVolume {
	pv := corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Annotations: map[string]string{topofix.GidAnnotation: "2001"},
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse(size)},
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				Glusterfs: &corev1.GlusterfsPersistentVolumeSource{
					EndpointsName: "glusterfs-dynamic-" + name,
					Path:          path,
				},
			},
		},
	}
	if volumeID != "" {
		pv.Annotations[topofix.HeketiVolumeIDAnnotation] = volumeID
	}
	return pv
}

var _ = Describe("RestoreVolumes", func() {
	var (
		ctx context.Context
		b   *testutils.Builder
		e   *repair.Engine
		pvs []corev1.PersistentVolume
	)

	BeforeEach(func() {
		ctx = testContext()
		b = threeNodes().Volume("c1", "v1", "vol_one", 1)
		e = repair.NewEngine(b.Doc, repair.Options{})
		pvs = []corev1.PersistentVolume{
			{ObjectMeta: metav1.ObjectMeta{Name: "pvc-host"}},
			glusterPV("pvc-1", "vol_one", "v1", "1Gi"),
			glusterPV("pvc-2", "vol_two", "v2", "5Gi"),
		}
	})

	It("should re-create a volume from its persistent volume", func() {
		created, err := e.RestoreVolumes(ctx, pvs, []string{"vol_two"})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(Equal([]string{"v2"}))

		v := b.Doc.Volumes["v2"]
		Expect(v).NotTo(BeNil())
		Expect(v.Info.Name).To(Equal("vol_two"))
		Expect(v.Info.Size).To(Equal(5))
		Expect(v.Info.Gid).To(BeEquivalentTo(2001))
		Expect(v.Info.Cluster).To(Equal("c1"))
		Expect(v.Info.Snapshot.Factor).To(BeEquivalentTo(1))
		Expect(v.Bricks).To(BeEmpty())
		Expect(b.Doc.Clusters["c1"].Info.Volumes).To(Equal([]string{"v1", "v2"}))

		var mount struct {
			Glusterfs struct {
				Hosts   []string          `json:"hosts"`
				Device  string            `json:"device"`
				Options map[string]string `json:"options"`
			} `json:"glusterfs"`
		}
		Expect(json.Unmarshal(v.Info.Mount, &mount)).To(Succeed())
		Expect(mount.Glusterfs.Hosts).To(Equal([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}))
		Expect(mount.Glusterfs.Device).To(Equal("10.0.0.1:vol_two"))
		Expect(mount.Glusterfs.Options).To(HaveKeyWithValue("backup-volfile-servers", "10.0.0.2,10.0.0.3"))
		Expect(string(v.Info.Durability)).To(ContainSubstring(`"replica":3`))

		Expect(e.Index().Verify()).To(Succeed())
	})

	It("should not touch volumes that already exist", func() {
		before := encode(b.Doc)
		created, err := e.RestoreVolumes(ctx, pvs, []string{"vol_one"})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeEmpty())
		Expect(encode(b.Doc)).To(Equal(before))
	})

	It("should fail for names without a persistent volume", func() {
		_, err := e.RestoreVolumes(ctx, pvs, []string{"vol_nine"})
		Expect(err).To(MatchError(topology.ErrUnknownVolume))
	})

	It("should fail for persistent volumes without a heketi id", func() {
		pvs = append(pvs, glusterPV("pvc-3", "vol_three", "", "1Gi"))
		_, err := e.RestoreVolumes(ctx, pvs, []string{"vol_three"})
		Expect(err).To(MatchError(repair.ErrMissingAnnotation))
	})

	It("should require exactly one cluster", func() {
		b.Cluster("c2")
		_, err := e.RestoreVolumes(ctx, pvs, []string{"vol_two"})
		Expect(err).To(MatchError(repair.ErrMultiClusterUnsupported))
	})
})
