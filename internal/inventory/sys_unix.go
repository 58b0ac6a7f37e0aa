//go:build unix

package inventory

import (
	"io/fs"
	"syscall"
)

func sysInfo(info fs.FileInfo) (*Ownership, *Filesystem) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, nil
	}
	return &Ownership{UID: st.Uid, GID: st.Gid},
		&Filesystem{Inode: uint64(st.Ino), Device: uint64(st.Dev)}
}
