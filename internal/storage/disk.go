package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage returns the size in bytes of each named local state path (file or directory)
// and their total. Missing paths report 0. A SQLite path also counts its -wal and -shm files.
func DiskUsage(paths map[string]string) (map[string]int64, int64, error) {
	out := make(map[string]int64, len(paths))
	var total int64
	for name, p := range paths {
		if p == "" {
			out[name] = 0
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return nil, 0, err
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			if extra, err := pathSize(p + suffix); err == nil {
				n += extra
			}
		}
		out[name] = n
		total += n
	}
	return out, total, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
