package store

import "context"

// RowStatus is the status for a row: NORMAL or ARCHIVED.
type RowStatus string

const (
	Normal   RowStatus = "NORMAL"
	Archived RowStatus = "ARCHIVED"
)

func (r RowStatus) String() string {
	return string(r)
}

// User is a minimal account record, enough for recommendation summaries and
// activity joins. Identity management itself lives outside this service.
type User struct {
	ID        int32
	Username  string
	Nickname  string
	RowStatus RowStatus
	CreatedTs int64
}

// FindUser is the find condition for users.
type FindUser struct {
	ID        *int32
	Username  *string
	RowStatus *RowStatus
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(cacheKeyInt32(user.ID), user)
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.ID != nil {
		if cached, ok := s.userCache.Get(cacheKeyInt32(*find.ID)); ok {
			if user, ok := cached.(*User); ok {
				return user, nil
			}
		}
	}

	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	user := list[0]
	s.userCache.Set(cacheKeyInt32(user.ID), user)
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}
