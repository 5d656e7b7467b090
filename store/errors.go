package store

import "github.com/pkg/errors"

// Domain errors surfaced to callers. Handlers map these onto transport codes;
// everything else is treated as an internal failure.
var (
	// ErrGroupNotFound is returned when the referenced group does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotInvited is returned when a responding user is not a member of the group.
	ErrNotInvited = errors.New("user is not invited to this group")

	// ErrAlreadyResponded is returned when a member's invite status has already
	// left PENDING. A response is terminal for that member.
	ErrAlreadyResponded = errors.New("member has already responded to this invite")

	// ErrGroupNotProposed is returned when responding to a group that is no
	// longer in the PROPOSED state.
	ErrGroupNotProposed = errors.New("group is not in proposed state")

	// ErrProposalExpired is returned when the proposal's expiry has passed.
	// Expiry is a read-time check, no background sweep is required.
	ErrProposalExpired = errors.New("proposal has expired")

	// ErrDimensionMismatch indicates vectors of different dimensions were
	// compared. This is a programming error and fails fast.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
