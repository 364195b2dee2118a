//go:build unix

package audit

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// CaptureIdentity returns the device and inode of path as "dev:ino". A
// rename keeps both, so the identity survives the move it was taken for.
func CaptureIdentity(path string) (string, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return "", &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return strconv.FormatUint(uint64(st.Dev), 10) + ":" + strconv.FormatUint(uint64(st.Ino), 10), nil
}
