package nest

import "errors"

// Sentinel errors for every failure the scoped file operations can produce.
// Handlers map these onto the uniform {success, message} envelope; the
// messages are user-facing.
var (
	// ErrNoMembership: the username has no active organization membership.
	ErrNoMembership = errors.New("user organization not found or not active")

	// ErrUnverified: the organization exists but has not completed
	// verification (or is missing entirely).
	ErrUnverified = errors.New("organization not found or not verified")

	// ErrFileNotFound: no metadata record for the storage handle.
	ErrFileNotFound = errors.New("file not found")

	// ErrAccessDenied: the record exists but is outside the requester's
	// scope or soft-deleted. Indistinguishable from absent so handles
	// cannot be enumerated by guessing.
	ErrAccessDenied = errors.New("file not found or access denied")

	// ErrNotUploader: only the uploader may delete a file.
	ErrNotUploader = errors.New("unauthorized to delete this file")

	// ErrBlobMissing: metadata exists but the object store holds no bytes
	// for the handle (deleted or corrupted externally).
	ErrBlobMissing = errors.New("file not found in storage - the file may have been deleted or corrupted")
)

// ValidationError reports a rejected upload or malformed input. The message
// is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
