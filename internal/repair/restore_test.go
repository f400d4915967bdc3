package repair_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/topolvm/topofix/internal/lvm"
	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/testutils"
	"github.com/topolvm/topofix/internal/topology"
)

var _ = Describe("RestoreBricks", func() {
	var (
		ctx     context.Context
		b       *testutils.Builder
		listing map[string][]string
		report  *lvm.Report
	)

	BeforeEach(func() {
		ctx = testContext()
		b = threeNodes().
			Volume("c1", "v1", "vol_one", 20).
			Brick("v1", "d1", "b1", 20971520, 106496, "tp_b1")
		b.Doc.Devices["d1"].Info.Storage = topology.StorageSize{Total: 100000000, Free: 78921984, Used: 21078016}
		listing = map[string][]string{
			"vol_one": {
				brickPath("10.0.0.1", "d1", "b1"),
				brickPath("10.0.0.2", "d2", "b2"),
				brickPath("10.0.0.3", "d3", "b3"),
			},
		}
		report = lvm.NewReport(
			lvm.LogicalVolume{Name: "brick_b1", PoolLV: "tp_b1"},
			lvm.LogicalVolume{Name: "brick_b2", PoolLV: "tp_b2"},
			lvm.LogicalVolume{Name: "brick_b3", PoolLV: "tp_b3"},
		)
	})

	It("should rebuild missing bricks from the volume size", func() {
		e := repair.NewEngine(b.Doc, repair.Options{})
		total := e.Index().TotalCapacity()

		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Restored).To(Equal([]string{"b2", "b3"}))

		doc := b.Doc
		b2 := doc.Bricks["b2"]
		Expect(b2).NotTo(BeNil())
		Expect(b2.Info.Size).To(BeEquivalentTo(20971520))
		Expect(b2.TpSize).To(BeEquivalentTo(20971520))
		Expect(b2.PoolMetadataSize).To(BeEquivalentTo(106496))
		Expect(b2.LvmThinPool).To(Equal("tp_b2"))
		Expect(b2.Info.Device).To(Equal("d2"))
		Expect(b2.Info.Node).To(Equal("n2"))
		Expect(b2.Info.Volume).To(Equal("v1"))
		Expect(b2.Info.Path).To(Equal("/var/lib/heketi/mounts/vg_d2/brick_b2/brick"))

		Expect(doc.Volumes["v1"].Bricks).To(Equal([]string{"b1", "b2", "b3"}))
		Expect(doc.Devices["d2"].Bricks).To(Equal([]string{"b2"}))
		Expect(doc.Devices["d2"].Info.Storage).To(Equal(topology.StorageSize{Total: 100000000, Free: 78921984, Used: 21078016}))
		Expect(doc.Devices["d1"].Info.Storage.Used).To(BeEquivalentTo(21078016))

		Expect(e.Index().TotalCapacity()).To(Equal(total))
		Expect(e.Index().Verify()).To(Succeed())
	})

	It("should be idempotent", func() {
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		after := encode(b.Doc)

		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Restored).To(BeEmpty())
		Expect(encode(b.Doc)).To(Equal(after))
	})

	It("should leave device usage alone without IncreaseUsage", func() {
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Doc.Devices["d2"].Info.Storage).To(Equal(topology.StorageSize{Total: 100000000, Free: 100000000}))
		Expect(b.Doc.Devices["d2"].Bricks).To(Equal([]string{"b2"}))
	})

	It("should take sizes from the LV when LVM reports one", func() {
		report = lvm.NewReport(
			lvm.LogicalVolume{Name: "brick_b2", PoolLV: "tp_b2", Size: "10485760.00k"},
			lvm.LogicalVolume{Name: "brick_b3", PoolLV: "tp_b3"},
		)
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).NotTo(HaveOccurred())

		b2 := b.Doc.Bricks["b2"]
		Expect(b2.TpSize).To(BeEquivalentTo(10485760))
		Expect(b2.PoolMetadataSize).To(BeEquivalentTo(53248))
		Expect(b.Doc.Bricks["b3"].TpSize).To(BeEquivalentTo(20971520))
	})

	It("should fail on an LV size it can not parse", func() {
		report = lvm.NewReport(lvm.LogicalVolume{Name: "brick_b2", PoolLV: "tp_b2", Size: "10g"})
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).To(MatchError(lvm.ErrMalformedLVSize))
	})

	It("should apply volume size divisors", func() {
		b.Doc.Volumes["v1"].Info.Size = 80
		e := repair.NewEngine(b.Doc, repair.Options{SizeDivisors: map[string]int{"v1": 4}})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Doc.Bricks["b2"].TpSize).To(BeEquivalentTo(20971520))
		Expect(b.Doc.Bricks["b2"].PoolMetadataSize).To(BeEquivalentTo(106496))
		Expect(b.Doc.Volumes["v1"].Info.Size).To(Equal(80))
	})

	It("should copy sizes from the brick a restored brick replaced", func() {
		b.Doc.Bricks["b1"].TpSize = 8388608
		b.Doc.Bricks["b1"].Info.Size = 8388608
		b.Doc.Bricks["b1"].PoolMetadataSize = 45056
		report = lvm.NewReport(
			lvm.LogicalVolume{Name: "brick_b2", PoolLV: "tp_b2", Size: "10485760.00k"},
			lvm.LogicalVolume{Name: "brick_b3", PoolLV: "tp_b3"},
		)
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{
			BrickSwap: map[string]string{"b2": "b1"},
		})
		Expect(err).NotTo(HaveOccurred())

		b2 := b.Doc.Bricks["b2"]
		Expect(b2.TpSize).To(BeEquivalentTo(8388608))
		Expect(b2.Info.Size).To(BeEquivalentTo(8388608))
		Expect(b2.PoolMetadataSize).To(BeEquivalentTo(45056))
		Expect(b2.LvmThinPool).To(Equal("tp_b2"))
		Expect(b2.Info.Volume).To(Equal("v1"))
	})

	It("should move an existing record to the device gluster reports", func() {
		b.Brick("v1", "d1", "b2", 20971520, 106496, "tp_b2")
		b.Doc.Volumes["v1"].Bricks = []string{"b1"}
		b.Doc.Devices["d1"].Info.Storage = topology.StorageSize{Total: 100000000, Free: 57843968, Used: 42156032}

		e := repair.NewEngine(b.Doc, repair.Options{})
		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Restored).To(ContainElement("b2"))

		Expect(b.Doc.Bricks["b2"].Info.Device).To(Equal("d2"))
		Expect(b.Doc.Devices["d1"].Bricks).To(Equal([]string{"b1"}))
		Expect(b.Doc.Devices["d2"].Bricks).To(Equal([]string{"b2"}))
		Expect(b.Doc.Devices["d1"].Info.Storage.Used).To(BeEquivalentTo(21078016))
		Expect(b.Doc.Devices["d2"].Info.Storage.Used).To(BeEquivalentTo(21078016))
		Expect(e.Index().Verify()).To(Succeed())
	})

	It("should move an existing record to the volume gluster lists it under", func() {
		b.Volume("c1", "v2", "vol_two", 20).
			Brick("v2", "d2", "b2", 20971520, 106496, "tp_b2")
		b.Doc.Devices["d2"].Info.Storage = topology.StorageSize{Total: 100000000, Free: 78921984, Used: 21078016}

		e := repair.NewEngine(b.Doc, repair.Options{})
		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Skipped).To(Equal([]string{"v2"}))
		Expect(result.Restored).To(ContainElement("b2"))

		Expect(b.Doc.Bricks["b2"].Info.Volume).To(Equal("v1"))
		Expect(b.Doc.Volumes["v1"].Bricks).To(ContainElement("b2"))
		Expect(b.Doc.Volumes["v2"].Bricks).To(BeEmpty())
		Expect(b.Doc.Devices["d2"].Bricks).To(Equal([]string{"b2"}))
		Expect(b.Doc.Devices["d2"].Info.Storage.Used).To(BeEquivalentTo(21078016))
		Expect(e.Index().Verify()).To(Succeed())
	})

	It("should skip volumes gluster does not list", func() {
		e := repair.NewEngine(b.Doc, repair.Options{})
		before := encode(b.Doc)
		result, err := e.RestoreBricks(ctx, map[string][]string{}, report, repair.RestoreOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Skipped).To(Equal([]string{"v1"}))
		Expect(encode(b.Doc)).To(Equal(before))
	})

	It("should refuse volumes with a snapshot factor other than 1", func() {
		b.Doc.Volumes["v1"].Info.Snapshot.Factor = 1.5
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).To(MatchError(repair.ErrUnsupportedSnapshotFactor))
	})

	It("should leave pending volumes alone and restore the rest", func() {
		b.Doc.Volumes["v1"].Pending.ID = "op1"
		b.Volume("c1", "v2", "vol_two", 1)
		listing["vol_two"] = []string{brickPath("10.0.0.1", "d1", "b4")}

		e := repair.NewEngine(b.Doc, repair.Options{})
		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).To(MatchError(repair.ErrPendingVolumeConflict))
		Expect(result.Pending).To(Equal([]string{"v1"}))
		Expect(result.Restored).To(Equal([]string{"b4"}))

		Expect(b.Doc.Volumes["v1"].Bricks).To(Equal([]string{"b1"}))
		Expect(b.Doc.Bricks).NotTo(HaveKey("b2"))
		b4 := b.Doc.Bricks["b4"]
		Expect(b4.TpSize).To(BeEquivalentTo(1048576))
		Expect(b4.PoolMetadataSize).To(BeEquivalentTo(8192))
		Expect(b4.LvmThinPool).To(BeEmpty())
	})

	It("should fail on a brick path naming an unknown node", func() {
		listing["vol_one"][1] = brickPath("10.9.9.9", "d2", "b2")
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).To(MatchError(topology.ErrUnknownNode))
	})

	It("should fail on a brick path naming an unknown device", func() {
		listing["vol_one"][1] = brickPath("10.0.0.2", "dx", "b2")
		e := repair.NewEngine(b.Doc, repair.Options{})
		_, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).To(MatchError(topology.ErrUnknownDevice))
	})

	It("should skip malformed brick paths", func() {
		listing["vol_one"] = []string{
			brickPath("10.0.0.1", "d1", "b1"),
			"/var/lib/heketi/mounts/vg_d2/brick_b2/brick",
		}
		e := repair.NewEngine(b.Doc, repair.Options{})
		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Restored).To(BeEmpty())
		Expect(b.Doc.Bricks).NotTo(HaveKey("b2"))
	})
})
