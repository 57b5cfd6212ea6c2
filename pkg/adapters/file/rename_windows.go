//go:build windows

package file

import "os"

// os.Rename fails on Windows if dst exists, so the old file is removed first.
// There is a tiny window where the key has no file.
func replace(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return os.Rename(src, dst)
}
