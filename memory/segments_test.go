package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

var _ = Describe("SegmentManager", func() {
	var sm *memory.SegmentManager

	BeforeEach(func() {
		sm = memory.NewSegmentManager()
	})

	It("allocates segments at increasing ids starting from 0", func() {
		first := sm.Add()
		second := sm.Add()
		Expect(first.Segment).To(Equal(0))
		Expect(second.Segment).To(Equal(1))
		Expect(sm.NumSegments()).To(Equal(2))
	})

	It("allocates temporary segments with negative ids starting from -1", func() {
		first := sm.AddTemporary()
		second := sm.AddTemporary()
		Expect(first.Segment).To(Equal(-1))
		Expect(second.Segment).To(Equal(-2))
	})

	It("loads data sequentially and returns the end address", func() {
		base := sm.Add()
		values := []memory.MaybeRelocatable{
			memory.FromFelt(field.FromUint64(1)),
			memory.FromFelt(field.FromUint64(2)),
			memory.FromFelt(field.FromUint64(3)),
		}
		end, err := sm.LoadData(base, values)
		Expect(err).NotTo(HaveOccurred())
		Expect(end.Equal(memory.NewRelocatable(0, 3))).To(BeTrue())
		Expect(sm.GetSegmentUsedSize(0)).To(Equal(uint64(3)))
	})

	Describe("relocation", func() {
		It("builds reloc[0]=1 and accumulates segment sizes", func() {
			seg0 := sm.Add()
			seg1 := sm.Add()
			_, err := sm.LoadData(seg0, []memory.MaybeRelocatable{
				memory.FromFelt(field.FromUint64(1)),
				memory.FromFelt(field.FromUint64(2)),
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = sm.LoadData(seg1, []memory.MaybeRelocatable{
				memory.FromFelt(field.FromUint64(3)),
			})
			Expect(err).NotTo(HaveOccurred())

			sm.ComputeEffectiveSizes(nil)
			table := sm.RelocateSegments()
			Expect(table).To(Equal([]uint64{1, 3}))

			addr := memory.RelocateAddress(memory.NewRelocatable(1, 0), table)
			Expect(addr).To(Equal(uint64(3)))
		})

		It("honors a reserved size larger than the natural size", func() {
			seg0 := sm.Add()
			_, err := sm.LoadData(seg0, []memory.MaybeRelocatable{
				memory.FromFelt(field.FromUint64(1)),
			})
			Expect(err).NotTo(HaveOccurred())
			sm.Add()

			sm.ComputeEffectiveSizes(map[int]uint64{0: 8})
			table := sm.RelocateSegments()
			Expect(table).To(Equal([]uint64{1, 9}))
		})
	})
})
