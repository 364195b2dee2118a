package audit

import "os"

// IdentityMatch represents the result of a folder identity check.
type IdentityMatch int

const (
	// IdentityMatches indicates the folder is the one that was moved.
	IdentityMatches IdentityMatch = iota
	// IdentityMismatch indicates a different folder now sits at the path.
	IdentityMismatch
	// IdentityNotFound indicates nothing exists at the path.
	IdentityNotFound
	// IdentityUnknown indicates no identity was recorded or the platform
	// cannot provide one.
	IdentityUnknown
)

// metaIdentity is the MOVE event metadata key holding the moved folder's
// identity.
const metaIdentity = "identity"

// VerifyIdentity compares the folder at path against the identity recorded
// when it was moved there.
func VerifyIdentity(path, expected string) (IdentityMatch, error) {
	if expected == "" {
		return IdentityUnknown, nil
	}
	got, err := CaptureIdentity(path)
	if err != nil {
		if os.IsNotExist(err) {
			return IdentityNotFound, nil
		}
		return IdentityNotFound, err
	}
	if got == "" {
		return IdentityUnknown, nil
	}
	if got != expected {
		return IdentityMismatch, nil
	}
	return IdentityMatches, nil
}
