package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const presenceColumns = `id, participant, room_id, connection_id, status, joined_at, left_at`

// PresenceRepository implements domain.PresenceRepository.
type PresenceRepository struct {
	pool *pgxpool.Pool
}

func NewPresenceRepository(pool *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{pool: pool}
}

func (r *PresenceRepository) SupersedeParticipant(ctx context.Context, roomID, participant string) error {
	query := `DELETE FROM presence WHERE room_id = $1 AND participant = $2`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, roomID, participant); err != nil {
		return fmt.Errorf("presence repository: supersede %s in %s: %w", participant, roomID, err)
	}
	return nil
}

func (r *PresenceRepository) Insert(ctx context.Context, p *domain.Presence) error {
	query := `INSERT INTO presence (` + presenceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		p.ID, p.Participant, p.RoomID, p.ConnectionID, p.Status, p.JoinedAt, p.LeftAt,
	)
	if err != nil {
		return fmt.Errorf("presence repository: insert %s: %w", p.ConnectionID, err)
	}
	return nil
}

// FindActiveByConnection uses idx_presence_live_connection.
func (r *PresenceRepository) FindActiveByConnection(ctx context.Context, connectionID string) (*domain.Presence, error) {
	query := `SELECT ` + presenceColumns + ` FROM presence WHERE connection_id = $1 AND left_at IS NULL`
	p, err := scanPresence(db.Conn(ctx, r.pool).QueryRow(ctx, query, connectionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPresenceMissing
		}
		return nil, fmt.Errorf("presence repository: find %s: %w", connectionID, err)
	}
	return p, nil
}

func (r *PresenceRepository) MarkLeftByConnection(ctx context.Context, connectionID string, at time.Time) error {
	query := `UPDATE presence SET status = $2, left_at = $3 WHERE connection_id = $1 AND left_at IS NULL`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, connectionID, domain.PresenceDisconnected, at); err != nil {
		return fmt.Errorf("presence repository: mark left %s: %w", connectionID, err)
	}
	return nil
}

func (r *PresenceRepository) MarkLeftByParticipant(ctx context.Context, roomID, participant string, at time.Time) ([]string, error) {
	query := `
        UPDATE presence SET status = $3, left_at = $4
        WHERE room_id = $1 AND participant = $2 AND left_at IS NULL
        RETURNING connection_id
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, roomID, participant, domain.PresenceDisconnected, at)
	if err != nil {
		return nil, fmt.Errorf("presence repository: mark left %s in %s: %w", participant, roomID, err)
	}
	conns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("presence repository: collect: %w", err)
	}
	return conns, nil
}

func (r *PresenceRepository) MarkAllLeft(ctx context.Context, roomID string, at time.Time) error {
	query := `UPDATE presence SET status = $2, left_at = $3 WHERE room_id = $1 AND left_at IS NULL`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, roomID, domain.PresenceDisconnected, at); err != nil {
		return fmt.Errorf("presence repository: mark all left in %s: %w", roomID, err)
	}
	return nil
}

func (r *PresenceRepository) ListOnline(ctx context.Context, roomID string) ([]*domain.Presence, error) {
	query := `
        SELECT ` + presenceColumns + `
        FROM presence
        WHERE room_id = $1 AND status = $2 AND left_at IS NULL
        ORDER BY joined_at ASC
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, roomID, domain.PresenceOnline)
	if err != nil {
		return nil, fmt.Errorf("presence repository: list %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []*domain.Presence
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, fmt.Errorf("presence repository: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence repository: rows: %w", err)
	}
	return out, nil
}

func (r *PresenceRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM presence WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("presence repository: delete %s: %w", roomID, err)
	}
	return nil
}

func scanPresence(row pgx.Row) (*domain.Presence, error) {
	p := &domain.Presence{}
	if err := row.Scan(&p.ID, &p.Participant, &p.RoomID, &p.ConnectionID, &p.Status, &p.JoinedAt, &p.LeftAt); err != nil {
		return nil, err
	}
	return p, nil
}
