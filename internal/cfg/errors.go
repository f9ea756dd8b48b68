package cfg

import "errors"

// Sentinel error kinds the core reports upward. Wrap with fmt.Errorf("%w: ...")
// to attach detail while staying errors.Is-compatible.
var (
	// ErrInvalidArgument is returned when an instruction record fails
	// Validate(), or a branch is fed to the non-branch append (or vice versa).
	ErrInvalidArgument = errors.New("cfg: invalid argument")

	// ErrCorruptBuffer is returned when deserialization finds inconsistent
	// sizes or impossible counts.
	ErrCorruptBuffer = errors.New("cfg: corrupt buffer")

	// ErrInconsistentBlock is reported per node when the merger finds two
	// observations of the same entry address with different bodies.
	ErrInconsistentBlock = errors.New("cfg: inconsistent block")

	// ErrInconsistentEdges is reported per node when the merger finds two
	// observations of the same entry address with conflicting non-zero
	// successor addresses.
	ErrInconsistentEdges = errors.New("cfg: inconsistent edges")

	// ErrBufferTooSmall is a fatal precondition violation: the caller
	// asked Serialize to write into a buffer smaller than MemSize().
	ErrBufferTooSmall = errors.New("cfg: buffer smaller than mem_size")
)
