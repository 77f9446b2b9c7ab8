package kernel

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	// maxPathDepth bounds the parent-chain walk against dentry cycles.
	maxPathDepth = 4096
	// maxNameLen bounds a single dentry name read.
	maxNameLen = 255
	// pathCacheSize is the number of resolved (mnt, dentry) pairs kept.
	pathCacheSize = 4096
)

// ErrPathTooDeep is returned when a dentry chain does not reach a root
// within maxPathDepth steps.
var ErrPathTooDeep = errors.New("dentry parent chain exceeds depth bound")

type pathKey struct {
	mnt    uint64
	dentry uint64
}

// PathResolver reconstructs absolute pathnames by prepending dentry names
// while walking d_parent, crossing mountpoints when the walk hits a mount
// root and a vfsmount is available. Resolved pairs are kept in an LRU
// cache since files listings hit the same directory chains repeatedly.
type PathResolver struct {
	k     *Kernel
	cache *lru.Cache
}

func newPathResolver(k *Kernel) (*PathResolver, error) {
	cache, err := lru.New(pathCacheSize)
	if err != nil {
		return nil, err
	}
	return &PathResolver{k: k, cache: cache}, nil
}

// Resolve builds the absolute path of dentry within mnt. A zero mnt
// resolves by parent chain only, which is all a bare dentry address (the
// files -d case) can offer.
func (r *PathResolver) Resolve(mnt, dentry uint64) (string, error) {
	if dentry == 0 {
		return "", nil
	}
	key := pathKey{mnt: mnt, dentry: dentry}
	if cached, ok := r.cache.Get(key); ok {
		return cached.(string), nil
	}

	var segs []string
	cur, curMnt := dentry, mnt
	for depth := 0; ; depth++ {
		if depth >= maxPathDepth {
			return "", errors.Wrapf(ErrPathTooDeep, "dentry %#x", dentry)
		}

		if curMnt != 0 {
			mntRoot, err := r.k.dec.Ptr(curMnt + r.k.lay.vfsmountRoot)
			if err != nil {
				return "", errors.Wrapf(err, "vfsmount %#x: mnt_root", curMnt)
			}
			if cur == mntRoot {
				// Root of this mount. Jump to the mountpoint in the
				// parent mount, or stop at the global root.
				next, nextMnt, crossed, err := r.crossMount(curMnt)
				if err != nil {
					return "", err
				}
				if !crossed {
					break
				}
				cur, curMnt = next, nextMnt
				continue
			}
		}

		parent, err := r.k.dec.Ptr(cur + r.k.lay.dentryParent)
		if err != nil {
			return "", errors.Wrapf(err, "dentry %#x: d_parent", cur)
		}
		if parent == cur {
			break
		}

		name, err := r.dentryName(cur)
		if err != nil {
			return "", err
		}
		if name != "" {
			segs = append(segs, name)
		}
		cur = parent
	}

	path := joinReversed(segs)
	r.cache.Add(key, path)
	return path, nil
}

// crossMount steps from a mount's root dentry to its mountpoint dentry in
// the parent mount. The vfsmount is embedded in struct mount, so the
// containing mount is found by subtracting the embedding offset.
func (r *PathResolver) crossMount(vfsmnt uint64) (dentry, nextVfsmnt uint64, crossed bool, err error) {
	mount := vfsmnt - r.k.lay.mountMnt
	parent, err := r.k.dec.Ptr(mount + r.k.lay.mountParent)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "mount %#x: mnt_parent", mount)
	}
	if parent == mount || parent == 0 {
		return 0, 0, false, nil
	}
	mountpoint, err := r.k.dec.Ptr(mount + r.k.lay.mountMountpoint)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "mount %#x: mnt_mountpoint", mount)
	}
	return mountpoint, parent + r.k.lay.mountMnt, true, nil
}

func (r *PathResolver) dentryName(dentry uint64) (string, error) {
	qstr := dentry + r.k.lay.dentryName
	namePtr, err := r.k.dec.Ptr(qstr + r.k.lay.qstrName)
	if err != nil {
		return "", errors.Wrapf(err, "dentry %#x: d_name.name", dentry)
	}
	if namePtr == 0 {
		return "", nil
	}
	nameLen, err := r.k.dec.U32(qstr + r.k.lay.qstrLen)
	if err != nil {
		return "", errors.Wrapf(err, "dentry %#x: d_name.len", dentry)
	}
	if nameLen == 0 {
		return "", nil
	}
	if nameLen > maxNameLen {
		return "", errors.Errorf("dentry %#x: name length %v exceeds bound", dentry, nameLen)
	}
	raw, err := r.k.dec.Bytes(namePtr, int(nameLen))
	if err != nil {
		return "", errors.Wrapf(err, "dentry %#x: name", dentry)
	}
	return string(raw), nil
}

func joinReversed(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

// DentryInfo is the files -d report: the structures reachable from a bare
// dentry address.
type DentryInfo struct {
	Dentry     uint64   `json:"dentry"`
	Inode      uint64   `json:"inode"`
	SuperBlock uint64   `json:"superblock"`
	Type       FileType `json:"-"`
	Path       string   `json:"path"`
}

// ResolveDentry reports on the dentry at addr: inode, super block, file
// type, and the pathname reachable by parent chain.
func (k *Kernel) ResolveDentry(addr uint64) (DentryInfo, error) {
	inode, err := k.dec.Ptr(addr + k.lay.dentryInode)
	if err != nil {
		return DentryInfo{}, errors.Wrapf(err, "dentry %#x: d_inode", addr)
	}
	info := DentryInfo{Dentry: addr, Inode: inode}
	if inode != 0 {
		mode, err := k.dec.U16(inode + k.lay.inodeMode)
		if err != nil {
			return DentryInfo{}, errors.Wrapf(err, "dentry %#x: i_mode", addr)
		}
		info.Type = FileTypeFromMode(mode)
		info.SuperBlock, err = k.dec.Ptr(inode + k.lay.inodeSb)
		if err != nil {
			return DentryInfo{}, errors.Wrapf(err, "dentry %#x: i_sb", addr)
		}
	}
	path, err := k.paths.Resolve(0, addr)
	if err != nil {
		return DentryInfo{}, err
	}
	info.Path = k.displayPath(path, info.Type, inode)
	return info, nil
}
