//go:build !unix

package inventory

import "io/fs"

func sysInfo(fs.FileInfo) (*Ownership, *Filesystem) {
	return nil, nil
}
