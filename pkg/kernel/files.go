package kernel

import (
	"fmt"

	"github.com/pkg/errors"
)

// OpenFile is one row of a files listing: the fd number and the chain of
// structures behind it.
type OpenFile struct {
	FD     int32    `json:"fd"`
	File   uint64   `json:"file"`
	Dentry uint64   `json:"dentry"`
	Inode  uint64   `json:"inode"`
	Type   FileType `json:"-"`
	Path   string   `json:"path"`
}

// FSContext is a context's root directory and current working directory.
type FSContext struct {
	Root string `json:"root"`
	CWD  string `json:"cwd"`
}

// maxFDsBound caps the fd array walk against corrupt fdtables.
const maxFDsBound = 1 << 20

// OpenFiles walks task->files->fdt and returns a row per open descriptor,
// in ascending fd order. NULL slots are skipped, preserving fd numbering.
func (k *Kernel) OpenFiles(t *Task) ([]OpenFile, error) {
	if t.files == 0 {
		return nil, nil
	}
	fdt, err := k.dec.Ptr(t.files + k.lay.filesFdt)
	if err != nil {
		return nil, errors.Wrapf(err, "task %v: fdtable", t.PID)
	}
	maxFds, err := k.dec.U32(fdt + k.lay.fdtMaxFds)
	if err != nil {
		return nil, errors.Wrapf(err, "task %v: max_fds", t.PID)
	}
	if maxFds > maxFDsBound {
		return nil, errors.Errorf("task %v: max_fds %v exceeds sanity bound", t.PID, maxFds)
	}
	fdArray, err := k.dec.Ptr(fdt + k.lay.fdtFd)
	if err != nil {
		return nil, errors.Wrapf(err, "task %v: fd array", t.PID)
	}

	var open []OpenFile
	for fd := uint32(0); fd < maxFds; fd++ {
		file, err := k.dec.Ptr(fdArray + uint64(fd)*uint64(k.dec.PtrSize))
		if err != nil {
			return nil, errors.Wrapf(err, "task %v: fd %v", t.PID, fd)
		}
		if file == 0 {
			continue
		}
		row, err := k.openFileAt(file)
		if err != nil {
			return nil, errors.Wrapf(err, "task %v: fd %v", t.PID, fd)
		}
		row.FD = int32(fd)
		open = append(open, row)
	}
	return open, nil
}

func (k *Kernel) openFileAt(file uint64) (OpenFile, error) {
	pathBase := file + k.lay.fileFPath
	mnt, err := k.dec.Ptr(pathBase + k.lay.pathMnt)
	if err != nil {
		return OpenFile{}, errors.Wrap(err, "f_path.mnt")
	}
	dentry, err := k.dec.Ptr(pathBase + k.lay.pathDentry)
	if err != nil {
		return OpenFile{}, errors.Wrap(err, "f_path.dentry")
	}
	inode, err := k.dec.Ptr(dentry + k.lay.dentryInode)
	if err != nil {
		return OpenFile{}, errors.Wrap(err, "d_inode")
	}

	row := OpenFile{File: file, Dentry: dentry, Inode: inode}
	if inode != 0 {
		mode, err := k.dec.U16(inode + k.lay.inodeMode)
		if err != nil {
			return OpenFile{}, errors.Wrap(err, "i_mode")
		}
		row.Type = FileTypeFromMode(mode)
	}

	path, err := k.paths.Resolve(mnt, dentry)
	if err != nil {
		return OpenFile{}, err
	}
	row.Path = k.displayPath(path, row.Type, inode)
	return row, nil
}

// displayPath applies crash(8)'s naming for anonymous inodes: pipe dentries
// have no pathname and render as pipe:/[ino], sockets render blank.
func (k *Kernel) displayPath(path string, typ FileType, inode uint64) string {
	if path != "/" && path != "" {
		return path
	}
	switch typ {
	case TypeFIFO:
		ino, err := k.dec.U64(inode + k.lay.inodeIno)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("pipe:/[%v]", ino)
	case TypeSocket:
		return ""
	}
	return path
}

// FSContextOf resolves the root and working directories of a context from
// its fs_struct.
func (k *Kernel) FSContextOf(t *Task) (FSContext, error) {
	if t.fs == 0 {
		return FSContext{}, errors.Errorf("task %v has no fs_struct", t.PID)
	}
	root, err := k.resolveStructPath(t.fs + k.lay.fsRoot)
	if err != nil {
		return FSContext{}, errors.Wrapf(err, "task %v: root", t.PID)
	}
	cwd, err := k.resolveStructPath(t.fs + k.lay.fsPwd)
	if err != nil {
		return FSContext{}, errors.Wrapf(err, "task %v: cwd", t.PID)
	}
	return FSContext{Root: root, CWD: cwd}, nil
}

func (k *Kernel) resolveStructPath(base uint64) (string, error) {
	mnt, err := k.dec.Ptr(base + k.lay.pathMnt)
	if err != nil {
		return "", err
	}
	dentry, err := k.dec.Ptr(base + k.lay.pathDentry)
	if err != nil {
		return "", err
	}
	return k.paths.Resolve(mnt, dentry)
}
