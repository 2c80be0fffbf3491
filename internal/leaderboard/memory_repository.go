package leaderboard

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-instance deployments.
// Production should use PostgresRepository.
type InMemoryRepository struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	codes       map[string]string
	members     map[string][]*Member
	submissions map[string][]*Submission
}

// NewInMemoryRepository creates a new in-memory leaderboard repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rooms:       make(map[string]*Room),
		codes:       make(map[string]string),
		members:     make(map[string][]*Member),
		submissions: make(map[string][]*Submission),
	}
}

// CreateRoom stores a new room and its creator.
func (r *InMemoryRepository) CreateRoom(_ context.Context, room *Room, creator *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[room.Code]; ok {
		return ErrCodeTaken
	}

	cpy := *room
	cpy.MemberCount = 1
	r.rooms[room.ID] = &cpy
	r.codes[room.Code] = room.ID

	m := copyMember(creator)
	r.members[room.ID] = []*Member{m}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *InMemoryRepository) GetRoom(_ context.Context, id string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cpy := *room
	return &cpy, nil
}

// GetRoomByCode retrieves a room by join code.
func (r *InMemoryRepository) GetRoomByCode(ctx context.Context, code string) (*Room, error) {
	r.mu.RLock()
	id, ok := r.codes[code]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.GetRoom(ctx, id)
}

// ListRoomsForUser returns the rooms a user belongs to, newest first.
func (r *InMemoryRepository) ListRoomsForUser(_ context.Context, userID string) ([]*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []*Room
	for roomID, members := range r.members {
		for _, m := range members {
			if m.UserID == userID {
				cpy := *r.rooms[roomID]
				rooms = append(rooms, &cpy)
				break
			}
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// AddMember adds a member to a room.
func (r *InMemoryRepository) AddMember(_ context.Context, member *Member) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[member.RoomID]
	if !ok {
		return false, ErrRoomNotFound
	}

	for _, m := range r.members[member.RoomID] {
		if m.UserID == member.UserID {
			return false, nil
		}
	}

	r.members[member.RoomID] = append(r.members[member.RoomID], copyMember(member))
	room.MemberCount++
	return true, nil
}

// GetMember retrieves a room member.
func (r *InMemoryRepository) GetMember(_ context.Context, roomID, userID string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members[roomID] {
		if m.UserID == userID {
			return copyMember(m), nil
		}
	}
	return nil, ErrMemberNotFound
}

// ListMembers returns all members of a room in join order.
func (r *InMemoryRepository) ListMembers(_ context.Context, roomID string) ([]*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}

	members := make([]*Member, 0, len(r.members[roomID]))
	for _, m := range r.members[roomID] {
		members = append(members, copyMember(m))
	}
	return members, nil
}

// RecordSubmission stores a submission and updates the member.
func (r *InMemoryRepository) RecordSubmission(_ context.Context, submission *Submission, member *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.members[submission.RoomID]
	idx := -1
	for i, m := range members {
		if m.UserID == member.UserID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrMemberNotFound
	}

	members[idx] = copyMember(member)
	cpy := *submission
	r.submissions[submission.RoomID] = append(r.submissions[submission.RoomID], &cpy)
	return nil
}

// ListSubmissions returns submissions of a room, newest first.
func (r *InMemoryRepository) ListSubmissions(_ context.Context, roomID string, opts SubmissionListOptions) ([]*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	all := r.submissions[roomID]
	result := make([]*Submission, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		s := all[i]
		if opts.UserID != "" && s.UserID != opts.UserID {
			continue
		}
		if !opts.Since.IsZero() && s.SubmittedAt.Before(opts.Since) {
			continue
		}
		cpy := *s
		result = append(result, &cpy)
	}
	return result, nil
}

func copyMember(m *Member) *Member {
	cpy := *m
	if m.FirstScore != nil {
		v := *m.FirstScore
		cpy.FirstScore = &v
	}
	if m.LatestScore != nil {
		v := *m.LatestScore
		cpy.LatestScore = &v
	}
	if m.ImprovementPct != nil {
		v := *m.ImprovementPct
		cpy.ImprovementPct = &v
	}
	if m.LastSubmittedAt != nil {
		v := *m.LastSubmittedAt
		cpy.LastSubmittedAt = &v
	}
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
