package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/builtins"
)

var _ = Describe("NewSet", func() {
	It("builds an empty set for plain", func() {
		set, err := builtins.NewSet(builtins.LayoutPlain)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Runners()).To(BeEmpty())
	})

	It("builds output/pedersen/range_check/ecdsa for small", func() {
		set, err := builtins.NewSet(builtins.LayoutSmall)
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0)
		for _, r := range set.Runners() {
			names = append(names, r.Name())
		}
		Expect(names).To(Equal([]string{"output", "pedersen", "range_check", "ecdsa"}))
	})

	It("builds seven runners (all but keccak) for all", func() {
		set, err := builtins.NewSet(builtins.LayoutAll)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Runners()).To(HaveLen(7))
	})

	It("rejects an unknown layout name", func() {
		_, err := builtins.NewSet(builtins.Layout("nonsense"))
		Expect(err).To(HaveOccurred())
	})
})
