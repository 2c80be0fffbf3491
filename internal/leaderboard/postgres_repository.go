package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lungbuddy/lungbuddy/internal/risk"
)

const uniqueViolation = "23505"

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL leaderboard repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateRoom stores a new room and its creator as the first member.
func (r *PostgresRepository) CreateRoom(ctx context.Context, room *Room, creator *Member) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (id, name, code, created_by, member_count, created_at)
		VALUES ($1, $2, $3, $4, 1, $5)
	`, room.ID, room.Name, room.Code, room.CreatedBy, room.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}

	if err := insertMember(ctx, tx, creator); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetRoom retrieves a room by ID.
func (r *PostgresRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	query := `
		SELECT id, name, code, created_by, member_count, created_at
		FROM rooms
		WHERE id = $1
	`
	return r.scanRoom(ctx, query, id)
}

// GetRoomByCode retrieves a room by join code.
func (r *PostgresRepository) GetRoomByCode(ctx context.Context, code string) (*Room, error) {
	query := `
		SELECT id, name, code, created_by, member_count, created_at
		FROM rooms
		WHERE code = $1
	`
	return r.scanRoom(ctx, query, code)
}

func (r *PostgresRepository) scanRoom(ctx context.Context, query string, args ...interface{}) (*Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&room.ID,
		&room.Name,
		&room.Code,
		&room.CreatedBy,
		&room.MemberCount,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms a user belongs to, newest first.
func (r *PostgresRepository) ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error) {
	query := `
		SELECT r.id, r.name, r.code, r.created_by, r.member_count, r.created_at
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Code,
			&room.CreatedBy,
			&room.MemberCount,
			&room.CreatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// AddMember adds a member to a room and increments the member count.
func (r *PostgresRepository) AddMember(ctx context.Context, member *Member) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id, display_name, total_submissions, joined_at)
		SELECT $1, $2, $3, 0, $4
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = $1)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, member.RoomID, member.UserID, member.DisplayName, member.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, member.RoomID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrRoomNotFound
		}
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE rooms SET member_count = member_count + 1 WHERE id = $1`, member.RoomID); err != nil {
		return false, fmt.Errorf("increment member count: %w", err)
	}

	return true, tx.Commit(ctx)
}

// GetMember retrieves a room member.
func (r *PostgresRepository) GetMember(ctx context.Context, roomID, userID string) (*Member, error) {
	query := `
		SELECT room_id, user_id, display_name, first_score, latest_score, improvement_pct,
			total_submissions, last_submitted_at, joined_at
		FROM room_members
		WHERE room_id = $1 AND user_id = $2
	`

	m, err := scanMember(r.pool.QueryRow(ctx, query, roomID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListMembers returns all members of a room in join order.
func (r *PostgresRepository) ListMembers(ctx context.Context, roomID string) ([]*Member, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	query := `
		SELECT room_id, user_id, display_name, first_score, latest_score, improvement_pct,
			total_submissions, last_submitted_at, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY joined_at, user_id
	`

	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RecordSubmission stores a submission and the updated member in one transaction.
func (r *PostgresRepository) RecordSubmission(ctx context.Context, submission *Submission, member *Member) error {
	breakdown, err := json.Marshal(submission.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx, `
		UPDATE room_members SET
			display_name = $3,
			first_score = $4,
			latest_score = $5,
			improvement_pct = $6,
			total_submissions = $7,
			last_submitted_at = $8
		WHERE room_id = $1 AND user_id = $2
	`,
		member.RoomID,
		member.UserID,
		member.DisplayName,
		member.FirstScore,
		member.LatestScore,
		member.ImprovementPct,
		member.TotalSubmissions,
		member.LastSubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO room_submissions (id, room_id, user_id, display_name, score, label, breakdown, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		submission.ID,
		submission.RoomID,
		submission.UserID,
		submission.DisplayName,
		submission.Score,
		string(submission.Label),
		breakdown,
		submission.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	return tx.Commit(ctx)
}

// ListSubmissions returns submissions of a room, newest first.
func (r *PostgresRepository) ListSubmissions(ctx context.Context, roomID string, opts SubmissionListOptions) ([]*Submission, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, room_id, user_id, display_name, score, label, breakdown, submitted_at
		FROM room_submissions
		WHERE room_id = $1
			AND ($2 = '' OR user_id = $2)
			AND ($3::timestamptz IS NULL OR submitted_at >= $3)
		ORDER BY submitted_at DESC
		LIMIT $4
	`

	var since interface{}
	if !opts.Since.IsZero() {
		since = opts.Since
	}

	rows, err := r.pool.Query(ctx, query, roomID, opts.UserID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*Submission
	for rows.Next() {
		var (
			s         Submission
			label     string
			breakdown []byte
		)
		if err := rows.Scan(
			&s.ID,
			&s.RoomID,
			&s.UserID,
			&s.DisplayName,
			&s.Score,
			&label,
			&breakdown,
			&s.SubmittedAt,
		); err != nil {
			return nil, err
		}
		s.Label = risk.Label(label)
		if err := json.Unmarshal(breakdown, &s.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
		submissions = append(submissions, &s)
	}
	return submissions, rows.Err()
}

func insertMember(ctx context.Context, tx pgx.Tx, m *Member) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id, display_name, total_submissions, joined_at)
		VALUES ($1, $2, $3, 0, $4)
	`, m.RoomID, m.UserID, m.DisplayName, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.RoomID,
		&m.UserID,
		&m.DisplayName,
		&m.FirstScore,
		&m.LatestScore,
		&m.ImprovementPct,
		&m.TotalSubmissions,
		&m.LastSubmittedAt,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
