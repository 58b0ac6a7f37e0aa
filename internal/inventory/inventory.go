// Package inventory records filesystem metadata for every entry in a tree
// without following symlinks.
package inventory

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry types.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeSymlink   = "symlink"
)

// Entry is the metadata of one filesystem entry, taken with lstat.
type Entry struct {
	Path          string      `json:"path"`
	Name          string      `json:"name"`
	Extension     string      `json:"extension"`
	Type          string      `json:"type"`
	SizeBytes     int64       `json:"size_bytes"`
	Modified      time.Time   `json:"modified"`
	Permissions   Permissions `json:"permissions"`
	Ownership     *Ownership  `json:"ownership,omitempty"`
	Filesystem    *Filesystem `json:"filesystem,omitempty"`
	SymlinkTarget string      `json:"symlink_target,omitempty"`
}

// Permissions holds the permission bits.
type Permissions struct {
	Mode         string `json:"mode"`
	IsExecutable bool   `json:"is_executable"`
}

// Ownership is only populated where the platform exposes it.
type Ownership struct {
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
}

// Filesystem is only populated where the platform exposes it.
type Filesystem struct {
	Inode  uint64 `json:"inode"`
	Device uint64 `json:"device"`
}

// Report is the inventory artifact.
type Report struct {
	ScanRoot string    `json:"scan_root"`
	ScanTime time.Time `json:"scan_time"`
	Entries  []Entry   `json:"entries"`
}

// Scan walks root, recording the root directory and everything beneath
// it in walk order. Entries that cannot be stat'ed are logged and skipped.
func Scan(root string, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	report := &Report{ScanRoot: abs, ScanTime: time.Now().UTC(), Entries: []Entry{}}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("inventory.walk_failed", "path", path, "err", err)
			if d != nil && d.IsDir() && path != abs {
				return fs.SkipDir
			}
			return nil
		}
		e, err := Stat(path)
		if err != nil {
			logger.Warn("inventory.stat_failed", "path", path, "err", err)
			return nil
		}
		report.Entries = append(report.Entries, *e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return report, nil
}

// Stat returns the metadata of a single path.
func Stat(path string) (*Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Path:      abs,
		Name:      info.Name(),
		Extension: strings.ToLower(filepath.Ext(info.Name())),
		SizeBytes: info.Size(),
		Modified:  info.ModTime().UTC(),
		Permissions: Permissions{
			Mode:         fmt.Sprintf("0o%o", info.Mode().Perm()),
			IsExecutable: info.Mode().Perm()&0o100 != 0,
		},
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		e.Type = TypeSymlink
		if target, err := os.Readlink(path); err == nil {
			e.SymlinkTarget = target
		}
	case info.IsDir():
		e.Type = TypeDirectory
	default:
		e.Type = TypeFile
	}
	e.Ownership, e.Filesystem = sysInfo(info)
	return e, nil
}
