package leaderboard

import (
	"context"
	"time"
)

// SubmissionListOptions filters submission listings.
type SubmissionListOptions struct {
	// UserID restricts results to one member when set.
	UserID string

	// Since excludes submissions older than this time when non-zero.
	Since time.Time

	// Limit caps the number of results (default 50).
	Limit int
}

// Repository defines the interface for leaderboard persistence.
type Repository interface {
	// CreateRoom stores a new room and its creator as the first member.
	// Returns ErrCodeTaken if the join code is already used.
	CreateRoom(ctx context.Context, room *Room, creator *Member) error

	// GetRoom retrieves a room by ID.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// GetRoomByCode retrieves a room by its join code.
	GetRoomByCode(ctx context.Context, code string) (*Room, error)

	// ListRoomsForUser returns the rooms a user belongs to, newest first.
	ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error)

	// AddMember adds a member to a room and increments the member count.
	// Returns false without error if the user is already a member.
	AddMember(ctx context.Context, member *Member) (bool, error)

	// GetMember retrieves a room member.
	GetMember(ctx context.Context, roomID, userID string) (*Member, error)

	// ListMembers returns all members of a room in join order.
	ListMembers(ctx context.Context, roomID string) ([]*Member, error)

	// RecordSubmission stores a submission and the updated member atomically.
	RecordSubmission(ctx context.Context, submission *Submission, member *Member) error

	// ListSubmissions returns submissions of a room, newest first.
	ListSubmissions(ctx context.Context, roomID string, opts SubmissionListOptions) ([]*Submission, error)
}
