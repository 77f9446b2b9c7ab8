package kernel

import (
	"github.com/pkg/errors"

	"github.com/kdump-tools/crashctl/pkg/kcore"
)

// layout caches the field offsets the walkers touch on every step, so a
// missing profile entry fails at construction instead of mid-walk.
type layout struct {
	taskPID    uint64
	taskComm   uint64
	taskCPU    uint64
	taskTasks  uint64
	taskFiles  uint64
	taskFS     uint64
	commLen    int
	hasTaskCPU bool

	fsRoot uint64
	fsPwd  uint64

	pathMnt    uint64
	pathDentry uint64

	filesFdt  uint64
	fdtMaxFds uint64
	fdtFd     uint64

	fileFPath uint64

	dentryParent uint64
	dentryName   uint64
	dentryInode  uint64
	qstrName     uint64
	qstrLen      uint64

	inodeMode uint64
	inodeIno  uint64
	inodeSb   uint64

	mountMnt        uint64
	mountParent     uint64
	mountMountpoint uint64
	vfsmountRoot    uint64
}

// Kernel binds the three host collaborators the original crash command
// assumed (memory reads, symbol resolution, type layouts) and exposes the
// structure walks built on them.
type Kernel struct {
	dec      *kcore.Decoder
	syms     *kcore.SymbolTable
	prof     *kcore.Profile
	lay      layout
	initTask uint64
	paths    *PathResolver
}

func New(mem kcore.Memory, syms *kcore.SymbolTable, prof *kcore.Profile) (*Kernel, error) {
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	order, err := prof.Order()
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		dec:  kcore.NewDecoder(mem, order, prof.Arch.PointerSize),
		syms: syms,
		prof: prof,
	}
	if err := k.loadLayout(); err != nil {
		return nil, err
	}

	initTask, ok := syms.Lookup("init_task")
	if !ok {
		return nil, errors.New("symbol map does not define init_task")
	}
	k.initTask = initTask

	k.paths, err = newPathResolver(k)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Kernel) loadLayout() error {
	var err error
	grab := func(dst *uint64, structName, field string) {
		if err != nil {
			return
		}
		*dst, err = k.prof.Offset(structName, field)
	}

	grab(&k.lay.taskPID, "task_struct", "pid")
	grab(&k.lay.taskComm, "task_struct", "comm")
	grab(&k.lay.taskTasks, "task_struct", "tasks")
	grab(&k.lay.taskFiles, "task_struct", "files")
	grab(&k.lay.taskFS, "task_struct", "fs")
	grab(&k.lay.fsRoot, "fs_struct", "root")
	grab(&k.lay.fsPwd, "fs_struct", "pwd")
	grab(&k.lay.pathMnt, "path", "mnt")
	grab(&k.lay.pathDentry, "path", "dentry")
	grab(&k.lay.filesFdt, "files_struct", "fdt")
	grab(&k.lay.fdtMaxFds, "fdtable", "max_fds")
	grab(&k.lay.fdtFd, "fdtable", "fd")
	grab(&k.lay.fileFPath, "file", "f_path")
	grab(&k.lay.dentryParent, "dentry", "d_parent")
	grab(&k.lay.dentryName, "dentry", "d_name")
	grab(&k.lay.dentryInode, "dentry", "d_inode")
	grab(&k.lay.qstrName, "qstr", "name")
	grab(&k.lay.qstrLen, "qstr", "len")
	grab(&k.lay.inodeMode, "inode", "i_mode")
	grab(&k.lay.inodeIno, "inode", "i_ino")
	grab(&k.lay.inodeSb, "inode", "i_sb")
	grab(&k.lay.mountMnt, "mount", "mnt")
	grab(&k.lay.mountParent, "mount", "mnt_parent")
	grab(&k.lay.mountMountpoint, "mount", "mnt_mountpoint")
	grab(&k.lay.vfsmountRoot, "vfsmount", "mnt_root")
	if err != nil {
		return err
	}

	commLen, err := k.prof.FieldSize("task_struct", "comm")
	if err != nil {
		return err
	}
	k.lay.commLen = int(commLen)
	if k.lay.commLen == 0 {
		k.lay.commLen = 16
	}

	// cpu is optional; older layouts keep it in thread_info instead.
	if off, err := k.prof.Offset("task_struct", "cpu"); err == nil {
		k.lay.taskCPU = off
		k.lay.hasTaskCPU = true
	}
	return nil
}

// PtrSize is the word size of the dumped kernel, for address formatting.
func (k *Kernel) PtrSize() int {
	return k.dec.PtrSize
}

// Symbols exposes the loaded symbol table.
func (k *Kernel) Symbols() *kcore.SymbolTable {
	return k.syms
}
