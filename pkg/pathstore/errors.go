package pathstore

import "errors"

var (
	// ErrInvalidInput indicates a non-finite coordinate or malformed numeric text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexOutOfRange indicates a waypoint index outside the path.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNotFound indicates the named path does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrDuplicateName indicates a path with that name already exists.
	ErrDuplicateName = errors.New("duplicate path name")
	// ErrLastPathProtected is returned when deleting the only remaining path.
	ErrLastPathProtected = errors.New("cannot delete the last path")
	// ErrPersistence indicates an unreadable or corrupt snapshot, or a failed write.
	ErrPersistence = errors.New("persistence error")
	// ErrNoSnapshot is returned by a Persister that has nothing saved yet.
	ErrNoSnapshot = errors.New("no snapshot")
)
