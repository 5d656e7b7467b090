package store

import (
	"context"
)

// GroupStatus is the lifecycle state of a study group.
// PROPOSED groups are invisible to normal group listings until activated.
// ACTIVE and DECLINED are terminal for the proposal lifecycle.
type GroupStatus string

const (
	GroupProposed GroupStatus = "PROPOSED"
	GroupActive   GroupStatus = "ACTIVE"
	GroupDeclined GroupStatus = "DECLINED"
	GroupArchived GroupStatus = "ARCHIVED"
)

// InviteStatus is a member's response state. Transitions are
// PENDING -> ACCEPTED | DECLINED, and ACCEPTED -> JOINED during activation
// only. Any other transition is rejected.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteDeclined InviteStatus = "DECLINED"
	InviteJoined   InviteStatus = "JOINED"
)

// Group is a study group, proposed or active.
type Group struct {
	ID        int32
	UID       string
	Name      string
	Status    GroupStatus
	Subject   *string
	Tags      []string
	ExpiresTs *int64
	CreatedTs int64
	UpdatedTs int64

	// Members are loaded alongside the group. Soft-removed members
	// (RowStatus ARCHIVED) are excluded unless explicitly requested.
	Members []*GroupMember
}

// GroupMember links a user to a group with their invite response state.
type GroupMember struct {
	GroupID      int32
	UserID       int32
	InviteStatus InviteStatus
	RespondedTs  *int64
	RowStatus    RowStatus
}

// FindGroup is the find condition for groups.
type FindGroup struct {
	ID              *int32
	UID             *string
	Status          *GroupStatus
	MemberUserID    *int32
	MemberStatus    *InviteStatus
	IncludeArchived bool
}

// UpdateGroup is the update condition for groups. Nil fields are untouched.
type UpdateGroup struct {
	ID        int32
	Name      *string
	Status    *GroupStatus
	ExpiresTs *int64
}

// RespondToGroupInvite carries one member's response to a proposed group.
// The whole respond-count-activate sequence executes inside a single driver
// transaction so that concurrent accepts cannot both run activation.
type RespondToGroupInvite struct {
	GroupID              int32
	UserID               int32
	Accept               bool
	MinMembersToActivate int
	Now                  int64
}

// GroupInviteResult reports the outcome of a member response.
type GroupInviteResult struct {
	// Activated is true iff this call performed the PROPOSED -> ACTIVE
	// transition. A concurrent loser observes the group already ACTIVE,
	// reports AlreadyActive and performs no activation side effects.
	Activated     bool
	AlreadyActive bool
	AcceptedCount int

	// JoinedUserIDs is populated only by the call that performed activation;
	// one activation notification is owed per joined member.
	JoinedUserIDs []int32
}

func (s *Store) CreateGroup(ctx context.Context, create *Group) (*Group, error) {
	return s.driver.CreateGroup(ctx, create)
}

func (s *Store) GetGroup(ctx context.Context, find *FindGroup) (*Group, error) {
	list, err := s.driver.ListGroups(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListGroups(ctx context.Context, find *FindGroup) ([]*Group, error) {
	return s.driver.ListGroups(ctx, find)
}

func (s *Store) UpdateGroup(ctx context.Context, update *UpdateGroup) (*Group, error) {
	return s.driver.UpdateGroup(ctx, update)
}

// RespondToGroupInvite applies one member's response and, when the accepted
// count reaches the activation threshold, performs the activation transition
// atomically. See Driver.RespondToGroupInvite for the concurrency contract.
func (s *Store) RespondToGroupInvite(ctx context.Context, respond *RespondToGroupInvite) (*GroupInviteResult, error) {
	return s.driver.RespondToGroupInvite(ctx, respond)
}
