package lib

import "errors"

// Sentinel errors for validation failures. Callers classify with errors.Is;
// anything below the command layer returns rather than exits.
var (
	// ErrBadManifest covers structural problems in the modlist container or
	// its embedded document: missing "modlist" entry, unparsable JSON,
	// missing "Archives" collection, records without Name or Hash.
	ErrBadManifest = errors.New("malformed modlist")

	// ErrDuplicateName is returned when two manifest records share a Name.
	ErrDuplicateName = errors.New("duplicate archive name in modlist")

	// ErrDuplicateHash is returned when two manifest records share a Hash.
	ErrDuplicateHash = errors.New("duplicate archive hash in modlist")

	// ErrSizeMismatch is returned when the manifest's own metadata declares
	// a container size that differs from the file on disk.
	ErrSizeMismatch = errors.New("modlist size mismatch")

	// ErrDuplicateArchive is returned when directory discovery resolves the
	// same archive path twice.
	ErrDuplicateArchive = errors.New("duplicate archive in downloads directory")

	// ErrNoArchives is returned when discovery finds nothing to reconcile.
	ErrNoArchives = errors.New("no archives found in downloads directory")
)
