package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const auctionColumns = `room_id, title, description, starting_price, current_bid, created_by, highest_bidder,
        status, duration_minutes, end_time, online_participants, joined_participants, winner, final_price,
        created_at, updated_at`

// AuctionRepository implements domain.AuctionRepository
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.RoomID,
		a.Title,
		a.Description,
		a.StartingPrice,
		a.CurrentBid,
		a.CreatedBy,
		a.HighestBidder,
		a.Status,
		a.DurationMinutes,
		a.EndTime,
		a.OnlineParticipants,
		a.JoinedParticipants,
		a.Winner,
		a.FinalPrice,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return createError(a.RoomID, err)
}

// createError maps a duplicate room id to domain.ErrRoomExists.
func createError(roomID string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrRoomExists
	}
	return fmt.Errorf("auction repository: create %s: %w", roomID, err)
}

func (r *AuctionRepository) FindByRoom(ctx context.Context, roomID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE room_id = $1`
	return r.findOne(ctx, query, roomID)
}

// FindByRoomForUpdate must run inside a transaction; the row stays locked until it ends.
func (r *AuctionRepository) FindByRoomForUpdate(ctx context.Context, roomID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE room_id = $1 FOR UPDATE`
	return r.findOne(ctx, query, roomID)
}

func (r *AuctionRepository) findOne(ctx context.Context, query, roomID string) (*domain.Auction, error) {
	a, err := scanAuction(db.Conn(ctx, r.pool).QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction repository: find %s: %w", roomID, err)
	}
	return a, nil
}

// Save writes the mutable columns. end_time, created_by and starting_price never change.
func (r *AuctionRepository) Save(ctx context.Context, a *domain.Auction) error {
	query := `
        UPDATE auctions
        SET
            current_bid = $2,
            highest_bidder = $3,
            status = $4,
            online_participants = $5,
            joined_participants = $6,
            winner = $7,
            final_price = $8,
            updated_at = $9
        WHERE room_id = $1
    `
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.RoomID,
		a.CurrentBid,
		a.HighestBidder,
		a.Status,
		a.OnlineParticipants,
		a.JoinedParticipants,
		a.Winner,
		a.FinalPrice,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("auction repository: save %s: %w", a.RoomID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

// List returns every auction, newest first.
func (r *AuctionRepository) List(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC, room_id DESC`
	return r.findMany(ctx, query)
}

// FindExpired uses idx_auctions_status_end_time.
func (r *AuctionRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions
        WHERE status = $1 AND end_time <= $2
        ORDER BY end_time ASC
        LIMIT $3
    `
	return r.findMany(ctx, query, domain.StatusActive, now, limit)
}

func (r *AuctionRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Auction, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auction repository: query: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("auction repository: scan: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auction repository: rows: %w", err)
	}
	return auctions, nil
}

// Delete removes the auction; bids and presence rows cascade.
func (r *AuctionRepository) Delete(ctx context.Context, roomID string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM auctions WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("auction repository: delete %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	err := row.Scan(
		&a.RoomID,
		&a.Title,
		&a.Description,
		&a.StartingPrice,
		&a.CurrentBid,
		&a.CreatedBy,
		&a.HighestBidder,
		&a.Status,
		&a.DurationMinutes,
		&a.EndTime,
		&a.OnlineParticipants,
		&a.JoinedParticipants,
		&a.Winner,
		&a.FinalPrice,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.OnlineParticipants == nil {
		a.OnlineParticipants = []string{}
	}
	if a.JoinedParticipants == nil {
		a.JoinedParticipants = []string{}
	}
	return a, nil
}
