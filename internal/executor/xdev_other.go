//go:build !unix

package executor

// isCrossDevice is not detected on this platform; such failures surface as
// IO_FAILURE.
func isCrossDevice(err error) bool {
	return false
}
