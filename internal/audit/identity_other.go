//go:build !unix

package audit

import "os"

// CaptureIdentity has no inode to report on this platform; it returns an
// empty identity, which VerifyIdentity treats as unknown.
func CaptureIdentity(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		return "", err
	}
	return "", nil
}
