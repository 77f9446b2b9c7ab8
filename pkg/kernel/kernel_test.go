package kernel_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/kdump-tools/crashctl/pkg/kernel"
)

var _ = Describe("task contexts", func() {
	It("should walk the init_task list", func() {
		k := newTestKernel()
		tasks, err := k.Tasks()
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].PID).To(Equal(int32(0)))
		Expect(tasks[0].Comm).To(Equal("swapper"))
		Expect(tasks[1].PID).To(Equal(int32(42)))
		Expect(tasks[1].Comm).To(Equal("innd"))
		Expect(tasks[1].CPU).To(Equal(int32(1)))
		Expect(tasks[1].Addr).To(Equal(uint64(task1Addr)))
	})

	It("should find a task by pid", func() {
		k := newTestKernel()
		t, err := k.TaskByPID(42)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Comm).To(Equal("innd"))

		_, err = k.TaskByPID(1)
		Expect(err).To(HaveOccurred())
	})

	It("should resolve context arguments as pid or task address", func() {
		k := newTestKernel()

		t, err := k.LookupContext("42")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Addr).To(Equal(uint64(task1Addr)))

		t, err = k.LookupContext("20000")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PID).To(Equal(int32(42)))

		t, err = k.LookupContext("0x20000")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PID).To(Equal(int32(42)))

		_, err = k.LookupContext("notacontext")
		Expect(err).To(HaveOccurred())
	})

	It("should stop when the task list folds back on itself", func() {
		k := newKernelFor(buildLoopedTaskWorld())
		_, err := k.Tasks()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("loops back"))
	})
})

var _ = Describe("open files", func() {
	It("should list descriptors in ascending fd order, skipping holes", func() {
		k := newTestKernel()
		t, err := k.TaskByPID(42)
		Expect(err).NotTo(HaveOccurred())

		open, err := k.OpenFiles(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(open).To(HaveLen(5))

		fds := []int32{}
		for _, of := range open {
			fds = append(fds, of.FD)
		}
		Expect(fds).To(Equal([]int32{0, 2, 3, 4, 5}))

		Expect(open[0].File).To(Equal(uint64(fMessages)))
		Expect(open[0].Dentry).To(Equal(uint64(dMessages)))
		Expect(open[0].Inode).To(Equal(uint64(iMessages)))
		Expect(open[0].Type).To(Equal(kernel.TypeRegular))
		Expect(open[0].Path).To(Equal("/var/log/messages"))
	})

	It("should name anonymous pipes and leave sockets blank", func() {
		k := newTestKernel()
		t, err := k.TaskByPID(42)
		Expect(err).NotTo(HaveOccurred())

		open, err := k.OpenFiles(t)
		Expect(err).NotTo(HaveOccurred())

		Expect(open[1].Type).To(Equal(kernel.TypeFIFO))
		Expect(open[1].Path).To(Equal("pipe:/[777]"))

		Expect(open[4].Type).To(Equal(kernel.TypeSocket))
		Expect(open[4].Path).To(Equal(""))
	})

	It("should cross mountpoints", func() {
		k := newTestKernel()
		t, err := k.TaskByPID(42)
		Expect(err).NotTo(HaveOccurred())

		open, err := k.OpenFiles(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(open[3].Path).To(Equal("/boot/vmlinuz"))
	})

	It("should reject fdtables over the sanity bound", func() {
		k := newTestKernel()
		t, err := k.TaskAt(task2Addr)
		Expect(err).NotTo(HaveOccurred())

		_, err = k.OpenFiles(t)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("sanity bound"))
	})

	It("should resolve root and working directories", func() {
		k := newTestKernel()
		t, err := k.TaskByPID(42)
		Expect(err).NotTo(HaveOccurred())

		fsc, err := k.FSContextOf(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(fsc.Root).To(Equal("/"))
		Expect(fsc.CWD).To(Equal("/var"))
	})
})

var _ = Describe("dentry resolution", func() {
	It("should report inode, super block, type, and path", func() {
		k := newTestKernel()
		info, err := k.ResolveDentry(dMessages)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Inode).To(Equal(uint64(iMessages)))
		Expect(info.SuperBlock).To(Equal(uint64(superBlock)))
		Expect(info.Type).To(Equal(kernel.TypeRegular))
		Expect(info.Path).To(Equal("/var/log/messages"))
	})

	It("should bound cyclic parent chains", func() {
		k := newTestKernel()
		_, err := k.ResolveDentry(dCycleA)
		Expect(err).To(HaveOccurred())
		Expect(errors.Cause(err)).To(Equal(kernel.ErrPathTooDeep))
	})

	It("should reject names past the length bound", func() {
		k := newTestKernel()
		_, err := k.ResolveDentry(dBigName)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("exceeds bound"))
	})
})

var _ = Describe("reference matching", func() {
	sample := kernel.OpenFile{
		FD:     2,
		File:   0x81000,
		Dentry: 0x44000,
		Inode:  0x61000,
		Type:   kernel.TypeRegular,
		Path:   "/dev/pts/4",
	}

	It("should match by fd number", func() {
		Expect(kernel.ParseReference("2").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("3").Matches(sample)).To(BeFalse())
	})

	It("should match by structure address", func() {
		Expect(kernel.ParseReference("81000").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("0x44000").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("61000").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("99999").Matches(sample)).To(BeFalse())
	})

	It("should match by filename fragment", func() {
		Expect(kernel.ParseReference("pts/4").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("/dev").Matches(sample)).To(BeTrue())
		Expect(kernel.ParseReference("tty").Matches(sample)).To(BeFalse())
	})

	It("should filter open file rows", func() {
		rows := []kernel.OpenFile{sample, {FD: 7, Path: "/tmp/x"}}
		matched := kernel.FilterOpenFiles(kernel.ParseReference("pts/4"), rows)
		Expect(matched).To(HaveLen(1))
		Expect(matched[0].FD).To(Equal(int32(2)))
	})
})

var _ = Describe("file types", func() {
	It("should classify by S_IFMT bits", func() {
		Expect(kernel.FileTypeFromMode(0x81a4).String()).To(Equal("REG"))
		Expect(kernel.FileTypeFromMode(0x41ed).String()).To(Equal("DIR"))
		Expect(kernel.FileTypeFromMode(0x2190).String()).To(Equal("CHR"))
		Expect(kernel.FileTypeFromMode(0x6000).String()).To(Equal("BLK"))
		Expect(kernel.FileTypeFromMode(0x1180).String()).To(Equal("FIFO"))
		Expect(kernel.FileTypeFromMode(0xc1ff).String()).To(Equal("SOCK"))
		Expect(kernel.FileTypeFromMode(0xa1ff).String()).To(Equal("LNK"))
		Expect(kernel.FileTypeFromMode(0x0000).String()).To(Equal("UNKN"))
	})

	It("should pad addresses to the word size", func() {
		Expect(kernel.FormatAddr(0xc67f2000, 4)).To(Equal("c67f2000"))
		Expect(kernel.FormatAddr(0xc67f2000, 8)).To(Equal("00000000c67f2000"))
	})
})
