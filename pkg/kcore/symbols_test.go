package kcore_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/kdump-tools/crashctl/pkg/kcore"
)

const sampleMap = `ffffffff81000000 T startup_64
ffffffff81a00000 D init_task
ffffffff81c00000 t cleanup_module [ext4]

ffffffff81a00000 D init_task
`

var _ = Describe("symbol map parsing", func() {
	It("should resolve names and keep the first definition", func() {
		st, err := kcore.ParseSymbolMap(strings.NewReader(sampleMap))
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Len()).To(Equal(4))

		addr, ok := st.Lookup("init_task")
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint64(0xffffffff81a00000)))

		_, ok = st.Lookup("no_such_symbol")
		Expect(ok).To(BeFalse())
	})

	It("should keep module suffixes as part of the name", func() {
		st, err := kcore.ParseSymbolMap(strings.NewReader(sampleMap))
		Expect(err).NotTo(HaveOccurred())
		addr, ok := st.Lookup("cleanup_module [ext4]")
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint64(0xffffffff81c00000)))
	})

	It("should resolve the nearest preceding symbol", func() {
		st, err := kcore.ParseSymbolMap(strings.NewReader(sampleMap))
		Expect(err).NotTo(HaveOccurred())

		sym, ok := st.Nearest(0xffffffff81a00010)
		Expect(ok).To(BeTrue())
		Expect(sym.Name).To(Equal("init_task"))

		sym, ok = st.Nearest(0xffffffff81000000)
		Expect(ok).To(BeTrue())
		Expect(sym.Name).To(Equal("startup_64"))

		_, ok = st.Nearest(0x1000)
		Expect(ok).To(BeFalse())
	})

	It("should reject malformed lines", func() {
		_, err := kcore.ParseSymbolMap(strings.NewReader("ffffffff81000000 T\n"))
		Expect(err).To(HaveOccurred())

		_, err = kcore.ParseSymbolMap(strings.NewReader("nothex T foo\n"))
		Expect(err).To(HaveOccurred())
	})
})
