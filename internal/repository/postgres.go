package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"giveaway-bot/internal/model"
)

// Schema is the giveaways table layout. Participants and winners are stored as JSONB
// in join/draw order.
const Schema = `
	CREATE TABLE IF NOT EXISTS giveaways (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		prize TEXT NOT NULL,
		duration_seconds BIGINT NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		winner_count INT NOT NULL,
		participants JSONB NOT NULL DEFAULT '[]',
		announcement_ref TEXT NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		winners JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		finalized_at TIMESTAMPTZ
	)
`

// PostgresStore keeps giveaways in PostgreSQL, one row per giveaway.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the database schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create giveaways table: %w", err)
	}
	return nil
}

// Load reads all giveaways ordered by id.
func (s *PostgresStore) Load(ctx context.Context) ([]*model.Giveaway, error) {
	const query = `
		SELECT id, title, prize, duration_seconds, end_time, winner_count,
			participants, announcement_ref, status, winners, created_at, finalized_at
		FROM giveaways
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query giveaways: %w", err)
	}
	defer rows.Close()

	giveaways := []*model.Giveaway{}
	for rows.Next() {
		var (
			g            model.Giveaway
			status       string
			participants []byte
			winners      []byte
		)
		if err := rows.Scan(
			&g.ID,
			&g.Title,
			&g.Prize,
			&g.DurationSeconds,
			&g.EndTime,
			&g.WinnerCount,
			&participants,
			&g.AnnouncementRef,
			&status,
			&winners,
			&g.CreatedAt,
			&g.FinalizedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		g.Status = model.Status(status)

		if err := json.Unmarshal(participants, &g.Participants); err != nil {
			return nil, fmt.Errorf("%w: giveaway %d participants: %v", ErrCorruptState, g.ID, err)
		}
		if err := json.Unmarshal(winners, &g.Winners); err != nil {
			return nil, fmt.Errorf("%w: giveaway %d winners: %v", ErrCorruptState, g.ID, err)
		}
		if g.Participants == nil {
			g.Participants = []model.Participant{}
		}
		if len(g.Winners) == 0 {
			g.Winners = nil
		}

		giveaways = append(giveaways, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating giveaways: %w", err)
	}

	if err := ValidateSnapshot(giveaways); err != nil {
		return nil, err
	}
	return giveaways, nil
}

// Save upserts every giveaway and removes rows missing from the snapshot,
// all in one transaction.
func (s *PostgresStore) Save(ctx context.Context, giveaways []*model.Giveaway) error {
	const upsert = `
		INSERT INTO giveaways (id, title, prize, duration_seconds, end_time, winner_count,
			participants, announcement_ref, status, winners, created_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10::jsonb, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			prize = EXCLUDED.prize,
			duration_seconds = EXCLUDED.duration_seconds,
			end_time = EXCLUDED.end_time,
			winner_count = EXCLUDED.winner_count,
			participants = EXCLUDED.participants,
			announcement_ref = EXCLUDED.announcement_ref,
			status = EXCLUDED.status,
			winners = EXCLUDED.winners,
			created_at = EXCLUDED.created_at,
			finalized_at = EXCLUDED.finalized_at
	`

	batch := &pgx.Batch{}
	ids := make([]int64, 0, len(giveaways))
	for _, g := range giveaways {
		participants, err := marshalParticipants(g.Participants)
		if err != nil {
			return fmt.Errorf("%w: giveaway %d: %w", ErrPersistence, g.ID, err)
		}
		winners, err := marshalParticipants(g.Winners)
		if err != nil {
			return fmt.Errorf("%w: giveaway %d: %w", ErrPersistence, g.ID, err)
		}

		var finalizedAt *time.Time
		if g.FinalizedAt != nil {
			t := g.FinalizedAt.UTC()
			finalizedAt = &t
		}

		batch.Queue(upsert,
			g.ID, g.Title, g.Prize, g.DurationSeconds, g.EndTime.UTC(), g.WinnerCount,
			participants, g.AnnouncementRef, string(g.Status), winners, g.CreatedAt.UTC(), finalizedAt,
		)
		ids = append(ids, g.ID)
	}
	batch.Queue(`DELETE FROM giveaways WHERE NOT (id = ANY($1))`, ids)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

func marshalParticipants(ps []model.Participant) (string, error) {
	if ps == nil {
		ps = []model.Participant{}
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
