package postgres

import (
	"context"
	"fmt"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/db"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Append only inserts the row; clearing the previous winner is the caller's job in the same tx.
func (r *BidRepository) Append(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, room_id, bidder, amount, is_winning, placed_at, connection_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		bid.ID,
		bid.RoomID,
		bid.Bidder,
		bid.Amount,
		bid.IsWinning,
		bid.PlacedAt,
		bid.ConnectionID,
	)
	if err != nil {
		return fmt.Errorf("bid repository: append to %s: %w", bid.RoomID, err)
	}
	return nil
}

func (r *BidRepository) MarkAllNonWinning(ctx context.Context, roomID string) error {
	query := `UPDATE bids SET is_winning = FALSE WHERE room_id = $1 AND is_winning`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, roomID); err != nil {
		return fmt.Errorf("bid repository: clear winning in %s: %w", roomID, err)
	}
	return nil
}

// MarkWinning flags the most recent bid of bidder at amount.
func (r *BidRepository) MarkWinning(ctx context.Context, roomID, bidder string, amount float64) error {
	query := `
        UPDATE bids SET is_winning = TRUE
        WHERE id = (
            SELECT id FROM bids
            WHERE room_id = $1 AND bidder = $2 AND amount = $3
            ORDER BY placed_at DESC
            LIMIT 1
        )
    `
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, roomID, bidder, amount); err != nil {
		return fmt.Errorf("bid repository: mark winning in %s: %w", roomID, err)
	}
	return nil
}

func (r *BidRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM bids WHERE room_id = $1`, roomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("bid repository: count %s: %w", roomID, err)
	}
	return n, nil
}

// ListByRoom returns up to limit bids, newest first. A non-positive limit returns all.
func (r *BidRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT id, room_id, bidder, amount, is_winning, placed_at, connection_id
        FROM bids
        WHERE room_id = $1
        ORDER BY placed_at DESC
    `
	args := []any{roomID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list %s: %w", roomID, err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid := &domain.Bid{}
		err := rows.Scan(
			&bid.ID,
			&bid.RoomID,
			&bid.Bidder,
			&bid.Amount,
			&bid.IsWinning,
			&bid.PlacedAt,
			&bid.ConnectionID,
		)
		if err != nil {
			return nil, fmt.Errorf("bid repository: scan: %w", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid repository: rows: %w", err)
	}
	return bids, nil
}

func (r *BidRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM bids WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("bid repository: delete %s: %w", roomID, err)
	}
	return nil
}
