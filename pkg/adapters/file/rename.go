//go:build !windows

package file

import "os"

func replace(src, dst string) error {
	return os.Rename(src, dst)
}
