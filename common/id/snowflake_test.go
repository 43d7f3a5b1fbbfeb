package id_test

import (
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/common/id"
)

var _ = Describe("id", func() {
	It("generates increasing ids", func() {
		seen := make(map[int64]bool)
		prev := int64(0)
		for range 1000 {
			n := id.New()
			Expect(n).To(BeNumerically(">", prev))
			Expect(seen).NotTo(HaveKey(n))
			seen[n] = true
			prev = n
		}
	})

	It("marks temporary ids", func() {
		tmp := id.Temporary()
		Expect(tmp).To(HavePrefix("tmp-"))
		_, err := strconv.ParseInt(strings.TrimPrefix(tmp, "tmp-"), 10, 64)
		Expect(err).NotTo(HaveOccurred())
	})
})
