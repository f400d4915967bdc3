package repair_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/testutils"
	"github.com/topolvm/topofix/internal/topology"
)

var _ = Describe("SwapBrick", func() {
	var (
		ctx context.Context
		b   *testutils.Builder
		e   *repair.Engine
	)

	BeforeEach(func() {
		ctx = testContext()
		b = testutils.NewBuilder("c1").
			Node("c1", "n1", "10.0.0.1").
			Node("c1", "n2", "10.0.0.2").
			Device("n1", "A", 100, 900).
			Device("n2", "B", 0, 1000).
			Volume("c1", "v1", "vol_one", 1).
			Brick("v1", "A", "b1", 40, 10, "tp_b1")
		e = repair.NewEngine(b.Doc, repair.Options{})
	})

	It("should move the brick and its capacity to the new device", func() {
		total := e.Index().TotalCapacity()

		err := e.SwapBrick(ctx, "A", "b1", "B", "b2", map[string]string{"b2": "tp_b2"})
		Expect(err).NotTo(HaveOccurred())

		doc := b.Doc
		Expect(doc.Bricks).NotTo(HaveKey("b1"))
		Expect(doc.Bricks).To(HaveKey("b2"))
		nb := doc.Bricks["b2"]
		Expect(nb.Info.Device).To(Equal("B"))
		Expect(nb.Info.Node).To(Equal("n2"))
		Expect(nb.Info.Volume).To(Equal("v1"))
		Expect(nb.Info.Path).To(Equal("/var/lib/heketi/mounts/vg_B/brick_b2/brick"))
		Expect(nb.LvmThinPool).To(Equal("tp_b2"))
		Expect(nb.TpSize).To(BeEquivalentTo(40))
		Expect(nb.PoolMetadataSize).To(BeEquivalentTo(10))

		Expect(doc.Devices["A"].Bricks).To(BeEmpty())
		Expect(doc.Devices["B"].Bricks).To(Equal([]string{"b2"}))
		Expect(doc.Volumes["v1"].Bricks).To(Equal([]string{"b2"}))
		Expect(doc.Devices["A"].Info.Storage).To(Equal(topology.StorageSize{Total: 1000, Free: 950, Used: 50}))
		Expect(doc.Devices["B"].Info.Storage).To(Equal(topology.StorageSize{Total: 1000, Free: 950, Used: 50}))

		Expect(e.Index().TotalCapacity()).To(Equal(total))
		Expect(e.Index().Verify()).To(Succeed())
	})

	It("should keep the new brick's pool name even when it does not match", func() {
		err := e.SwapBrick(ctx, "A", "b1", "B", "b2", map[string]string{"b2": "tp_other"})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Doc.Bricks["b2"].LvmThinPool).To(Equal("tp_other"))
	})

	It("should not need a thin pool for bricks without one", func() {
		b.Doc.Bricks["b1"].LvmThinPool = ""
		err := e.SwapBrick(ctx, "A", "b1", "B", "b2", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Doc.Bricks["b2"].LvmThinPool).To(BeEmpty())
	})

	DescribeTable("should leave the document untouched when a precondition fails",
		func(prepare func(*testutils.Builder), oldDevice, oldBrick, newDevice, newBrick string, pools map[string]string, expected error) {
			if prepare != nil {
				prepare(b)
			}
			before := encode(b.Doc)

			err := e.SwapBrick(ctx, oldDevice, oldBrick, newDevice, newBrick, pools)
			Expect(err).To(MatchError(expected))
			Expect(encode(b.Doc)).To(Equal(before))
		},
		Entry("unknown old device", nil, "X", "b1", "B", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrUnknownDevice),
		Entry("unknown new device", nil, "A", "b1", "X", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrUnknownDevice),
		Entry("unknown old brick", nil, "A", "bx", "B", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrUnknownBrick),
		Entry("old brick on another device", nil, "B", "b1", "A", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrUnknownBrick),
		Entry("new brick id in use",
			func(b *testutils.Builder) { b.Brick("v1", "B", "b2", 40, 10, "tp_b2") },
			"A", "b1", "B", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrBrickIDCollision),
		Entry("volume of old brick missing",
			func(b *testutils.Builder) { b.Doc.Bricks["b1"].Info.Volume = "gone" },
			"A", "b1", "B", "b2", map[string]string{"b2": "tp_b2"}, topology.ErrUnknownVolume),
		Entry("thin pool unresolved", nil, "A", "b1", "B", "b2", map[string]string{}, repair.ErrThinPoolUnresolved),
	)
})
