package repair_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/topolvm/topofix/internal/lvm"
	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/topology"
)

var _ = Describe("a swap, restore and trim sequence", func() {
	It("should conserve capacity and keep references consistent", func() {
		ctx := testContext()
		b := threeNodes().
			Volume("c1", "v1", "vol_one", 20).
			Brick("v1", "d1", "b1", 20971520, 106496, "tp_b1")
		b.Doc.Devices["d1"].Info.Storage = topology.StorageSize{Total: 100000000, Free: 78921984, Used: 21078016}
		e := repair.NewEngine(b.Doc, repair.Options{})
		total := e.Index().TotalCapacity()

		By("swapping b1 onto d3")
		Expect(e.SwapBrick(ctx, "d1", "b1", "d3", "b9", map[string]string{"b9": "tp_b9"})).To(Succeed())
		Expect(e.Index().TotalCapacity()).To(Equal(total))
		Expect(e.Index().Verify()).To(Succeed())

		By("restoring the bricks gluster still has")
		listing := map[string][]string{
			"vol_one": {
				brickPath("10.0.0.3", "d3", "b9"),
				brickPath("10.0.0.2", "d2", "b2"),
				brickPath("10.0.0.1", "d1", "b3"),
			},
		}
		report := lvm.NewReport(
			lvm.LogicalVolume{Name: "brick_b2", PoolLV: "tp_b2"},
			lvm.LogicalVolume{Name: "brick_b3", PoolLV: "tp_b3"},
		)
		result, err := e.RestoreBricks(ctx, listing, report, repair.RestoreOptions{IncreaseUsage: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Restored).To(Equal([]string{"b2", "b3"}))
		Expect(e.Index().TotalCapacity()).To(Equal(total))
		Expect(e.Index().Verify()).To(Succeed())

		By("trimming b2")
		trimmed, err := e.TrimBricks(ctx, []string{"b2"}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(trimmed.Trimmed).To(Equal([]string{"b2"}))
		Expect(e.Index().TotalCapacity()).To(Equal(total))
		Expect(e.Index().Verify()).To(Succeed())

		Expect(b.Doc.Volumes["v1"].Bricks).To(Equal([]string{"b9", "b3"}))
		for _, id := range []string{"d1", "d2", "d3"} {
			Expect(b.Doc.Devices[id].Info.Storage.Used).To(BeNumerically(">=", 0), id)
		}
		Expect(b.Doc.Devices["d2"].Info.Storage.Used).To(BeEquivalentTo(0))
		Expect(b.Doc.Devices["d3"].Info.Storage.Used).To(BeEquivalentTo(21078016))
		Expect(b.Doc.Devices["d1"].Info.Storage.Used).To(BeEquivalentTo(21078016))
	})
})
