package policy

import "errors"

// Sentinel errors returned by policy operations. The Experiment actor passes
// them back to its callers unchanged; httpapi.statusFor maps them onto the
// HTTP status codes documented for the core.
var (
	// ErrNotFound is returned when an arm id does not exist in the policy.
	ErrNotFound = errors.New("policy: arm not found")
	// ErrArmDisabled is returned when Update targets a disabled arm (Draw
	// skips disabled arms instead).
	ErrArmDisabled = errors.New("policy: arm is disabled")
	// ErrNoActiveArms is returned by Draw when every arm is absent or disabled.
	ErrNoActiveArms = errors.New("policy: no active arms")
	// ErrBadRequest is returned for malformed inputs (negative counts, unknown tag).
	ErrBadRequest = errors.New("policy: bad request")
	// ErrUnknownSnapshotVersion is returned by Restore on an unrecognized snapshot version.
	ErrUnknownSnapshotVersion = errors.New("policy: unknown snapshot version")
	// ErrTornSnapshot is returned by Restore when a snapshot fails its checksum.
	ErrTornSnapshot = errors.New("policy: torn snapshot, checksum mismatch")
)
