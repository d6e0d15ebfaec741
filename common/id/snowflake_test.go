package id_test

import (
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/id"
)

var _ = Describe("Snowflake IDs", func() {
	BeforeEach(func() {
		Expect(id.Init(1)).To(Succeed())
	})

	It("generates increasing ids", func() {
		a := id.New()
		b := id.New()
		Expect(b).To(BeNumerically(">", a))
	})

	It("renders string ids as decimal numbers", func() {
		s := id.NewString()
		n, err := strconv.ParseInt(s, 10, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 0))
	})

	It("never repeats string ids", func() {
		seen := map[string]struct{}{}
		for range 1000 {
			s := id.NewString()
			Expect(seen).NotTo(HaveKey(s))
			seen[s] = struct{}{}
		}
	})
})
