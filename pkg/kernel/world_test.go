package kernel_test

import (
	"encoding/binary"
	"strings"

	. "github.com/onsi/gomega"

	"github.com/kdump-tools/crashctl/pkg/kcore"
	"github.com/kdump-tools/crashctl/pkg/kernel"
)

// A synthetic little-endian 64-bit dump: two tasks on the init_task list,
// a root filesystem with /var/log/messages open, an anonymous pipe, a
// socket, and a /boot mount to exercise mountpoint crossing.

const testProfile = `
arch:
  pointer_size: 8
  byte_order: little
structs:
  task_struct:
    size: 512
    fields:
      pid: {offset: 16, size: 4}
      cpu: {offset: 20, size: 4}
      comm: {offset: 32, size: 16}
      tasks: {offset: 64}
      files: {offset: 96}
      fs: {offset: 104}
  fs_struct:
    fields:
      root: {offset: 16}
      pwd: {offset: 32}
  path:
    fields:
      mnt: {offset: 0}
      dentry: {offset: 8}
  files_struct:
    fields:
      fdt: {offset: 8}
  fdtable:
    fields:
      max_fds: {offset: 0, size: 4}
      fd: {offset: 8}
  file:
    fields:
      f_path: {offset: 16}
  dentry:
    fields:
      d_parent: {offset: 24}
      d_name: {offset: 32}
      d_inode: {offset: 48}
  qstr:
    fields:
      len: {offset: 0, size: 4}
      name: {offset: 8}
  inode:
    fields:
      i_mode: {offset: 0, size: 2}
      i_ino: {offset: 8, size: 8}
      i_sb: {offset: 16}
  mount:
    fields:
      mnt_parent: {offset: 8}
      mnt_mountpoint: {offset: 16}
      mnt: {offset: 32}
  vfsmount:
    fields:
      mnt_root: {offset: 0}
`

const (
	initTaskAddr = 0x10000
	task1Addr    = 0x20000
	task2Addr    = 0x21000 // broken fdtable, off the task list

	loopTaskA = 0x22000 // looped-list world only
	loopTaskB = 0x23000

	fsStructAddr = 0x30000

	dRoot     = 0x40000
	dVar      = 0x41000
	dLog      = 0x42000
	dMessages = 0x43000
	dPipe     = 0x44000
	dBootRoot = 0x45000
	dBoot     = 0x46000
	dVmlinuz  = 0x47000
	dSock     = 0x48000
	dCycleA   = 0x49000 // parent chain never reaches a root
	dCycleB   = 0x4a000
	dBigName  = 0x4b000 // qstr len past the name bound

	nameVar      = 0x50000
	nameLog      = 0x50010
	nameMessages = 0x50020
	nameBoot     = 0x50030
	nameVmlinuz  = 0x50040

	iMessages = 0x60000
	iPipe     = 0x61000
	iVmlinuz  = 0x62000
	iSock     = 0x63000

	superBlock = 0x70000

	fMessages = 0x80000
	fPipe     = 0x81000
	fVmlinuz  = 0x82000
	fSock     = 0x83000

	filesStructAddr = 0x90000
	fdtableAddr     = 0x91000
	fdArrayAddr     = 0x92000

	badFilesStruct = 0xb0000
	badFdtable     = 0xb1000

	mount0 = 0xa0000
	mount1 = 0xa1000
)

const (
	offTaskPID   = 16
	offTaskCPU   = 20
	offTaskComm  = 32
	offTaskTasks = 64
	offTaskFiles = 96
	offTaskFS    = 104

	offMountParent = 8
	offMountPoint  = 16
	offMountVfs    = 32
)

// vfsmount addresses are the embedded struct within mount.
const (
	vfsmount0 = mount0 + offMountVfs
	vfsmount1 = mount1 + offMountVfs
)

const testSymbolMap = "0000000000010000 D init_task\n0000000000010200 T dump_stack\n"

type worldBuilder struct {
	buf *kcore.Buffer
	le  binary.ByteOrder
}

func (w *worldBuilder) writeStruct(addr uint64, size int, fill func(seg []byte)) {
	seg := make([]byte, size)
	fill(seg)
	w.buf.Write(addr, seg)
}

func (w *worldBuilder) task(addr uint64, pid, cpu uint32, comm string, next, files, fs uint64) {
	w.writeStruct(addr, 512, func(seg []byte) {
		w.le.PutUint32(seg[offTaskPID:], pid)
		w.le.PutUint32(seg[offTaskCPU:], cpu)
		copy(seg[offTaskComm:offTaskComm+16], comm)
		w.le.PutUint64(seg[offTaskTasks:], next+offTaskTasks)
		w.le.PutUint64(seg[offTaskFiles:], files)
		w.le.PutUint64(seg[offTaskFS:], fs)
	})
}

func (w *worldBuilder) dentry(addr, parent, namePtr uint64, nameLen uint32, inode uint64) {
	w.writeStruct(addr, 64, func(seg []byte) {
		w.le.PutUint64(seg[24:], parent)
		w.le.PutUint32(seg[32:], nameLen)
		w.le.PutUint64(seg[40:], namePtr)
		w.le.PutUint64(seg[48:], inode)
	})
}

func (w *worldBuilder) inode(addr uint64, mode uint16, ino, sb uint64) {
	w.writeStruct(addr, 24, func(seg []byte) {
		w.le.PutUint16(seg[0:], mode)
		w.le.PutUint64(seg[8:], ino)
		w.le.PutUint64(seg[16:], sb)
	})
}

func (w *worldBuilder) file(addr, mnt, dentry uint64) {
	w.writeStruct(addr, 32, func(seg []byte) {
		w.le.PutUint64(seg[16:], mnt)
		w.le.PutUint64(seg[24:], dentry)
	})
}

func (w *worldBuilder) mount(addr, parent, mountpoint, root uint64) {
	w.writeStruct(addr, 48, func(seg []byte) {
		w.le.PutUint64(seg[offMountParent:], parent)
		w.le.PutUint64(seg[offMountPoint:], mountpoint)
		w.le.PutUint64(seg[offMountVfs:], root) // vfsmount.mnt_root
	})
}

func (w *worldBuilder) name(addr uint64, s string) {
	w.buf.Write(addr, []byte(s))
}

func buildWorld() kcore.Memory {
	w := &worldBuilder{buf: &kcore.Buffer{}, le: binary.LittleEndian}

	// task list: init_task <-> task1
	w.task(initTaskAddr, 0, 0, "swapper", task1Addr, 0, 0)
	w.task(task1Addr, 42, 1, "innd", initTaskAddr, filesStructAddr, fsStructAddr)
	w.task(task2Addr, 99, 0, "broken", initTaskAddr, badFilesStruct, fsStructAddr)

	// fs_struct: root /, cwd /var
	w.writeStruct(fsStructAddr, 48, func(seg []byte) {
		w.le.PutUint64(seg[16:], vfsmount0)
		w.le.PutUint64(seg[24:], dRoot)
		w.le.PutUint64(seg[32:], vfsmount0)
		w.le.PutUint64(seg[40:], dVar)
	})

	// dentry tree: / -> var -> log -> messages, plus /boot on its own mount
	w.dentry(dRoot, dRoot, 0, 0, 0)
	w.dentry(dVar, dRoot, nameVar, 3, 0)
	w.dentry(dLog, dVar, nameLog, 3, 0)
	w.dentry(dMessages, dLog, nameMessages, 8, iMessages)
	w.dentry(dPipe, dPipe, 0, 0, iPipe)
	w.dentry(dBootRoot, dBootRoot, 0, 0, 0)
	w.dentry(dBoot, dRoot, nameBoot, 4, 0)
	w.dentry(dVmlinuz, dBootRoot, nameVmlinuz, 7, iVmlinuz)
	w.dentry(dSock, dSock, 0, 0, iSock)

	// corrupt dentries for the walk bounds
	w.dentry(dCycleA, dCycleB, nameVar, 3, 0)
	w.dentry(dCycleB, dCycleA, nameLog, 3, 0)
	w.dentry(dBigName, dRoot, nameVar, 300, 0)

	w.name(nameVar, "var")
	w.name(nameLog, "log")
	w.name(nameMessages, "messages")
	w.name(nameBoot, "boot")
	w.name(nameVmlinuz, "vmlinuz")

	w.inode(iMessages, 0x81a4, 1234, superBlock) // REG
	w.inode(iPipe, 0x1180, 777, superBlock)      // FIFO
	w.inode(iVmlinuz, 0x81ed, 555, superBlock)   // REG
	w.inode(iSock, 0xc1ff, 888, superBlock)      // SOCK

	// mounts: mount0 is the global root, mount1 is /boot
	w.mount(mount0, mount0, dRoot, dRoot)
	w.mount(mount1, mount0, dBoot, dBootRoot)

	w.file(fMessages, vfsmount0, dMessages)
	w.file(fPipe, 0, dPipe)
	w.file(fVmlinuz, vfsmount1, dVmlinuz)
	w.file(fSock, 0, dSock)

	// files_struct -> fdtable -> fd array
	w.writeStruct(filesStructAddr, 16, func(seg []byte) {
		w.le.PutUint64(seg[8:], fdtableAddr)
	})
	w.writeStruct(fdtableAddr, 16, func(seg []byte) {
		w.le.PutUint32(seg[0:], 8)
		w.le.PutUint64(seg[8:], fdArrayAddr)
	})
	w.writeStruct(fdArrayAddr, 64, func(seg []byte) {
		w.le.PutUint64(seg[0:], fMessages)
		w.le.PutUint64(seg[16:], fPipe)
		w.le.PutUint64(seg[24:], fMessages)
		w.le.PutUint64(seg[32:], fVmlinuz)
		w.le.PutUint64(seg[40:], fSock)
	})

	// corrupt fdtable for the sanity bound test
	w.writeStruct(badFilesStruct, 16, func(seg []byte) {
		w.le.PutUint64(seg[8:], badFdtable)
	})
	w.writeStruct(badFdtable, 16, func(seg []byte) {
		w.le.PutUint32(seg[0:], 1<<21)
		w.le.PutUint64(seg[8:], fdArrayAddr)
	})

	return w.buf
}

// buildLoopedTaskWorld corrupts the tasks list: the last entry points
// back at the middle task instead of init_task.
func buildLoopedTaskWorld() kcore.Memory {
	w := &worldBuilder{buf: &kcore.Buffer{}, le: binary.LittleEndian}
	w.task(initTaskAddr, 0, 0, "swapper", loopTaskA, 0, 0)
	w.task(loopTaskA, 10, 0, "first", loopTaskB, 0, 0)
	w.task(loopTaskB, 11, 0, "second", loopTaskA, 0, 0)
	return w.buf
}

func newKernelFor(mem kcore.Memory) *kernel.Kernel {
	prof, err := kcore.ParseProfile([]byte(testProfile))
	Expect(err).NotTo(HaveOccurred())
	syms, err := kcore.ParseSymbolMap(strings.NewReader(testSymbolMap))
	Expect(err).NotTo(HaveOccurred())
	k, err := kernel.New(mem, syms, prof)
	Expect(err).NotTo(HaveOccurred())
	return k
}

func newTestKernel() *kernel.Kernel {
	return newKernelFor(buildWorld())
}
