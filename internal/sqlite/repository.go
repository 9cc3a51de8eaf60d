// Package sqlite implements the post log on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blackmichael/listing-bot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS channel_posts (
	id          TEXT PRIMARY KEY,
	listing_id  TEXT NOT NULL,
	status      TEXT NOT NULL,
	message_id  INTEGER NOT NULL DEFAULT 0,
	photo_count INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS channel_posts_created_at ON channel_posts (created_at DESC);
`

// Repository implements domain.PostLog using SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the SQLite database at path, creating the schema if
// needed. The caller should call Close when the repository is no longer
// needed.
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordPost inserts a post record.
func (r *Repository) RecordPost(ctx context.Context, rec *domain.PostRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_posts (id, listing_id, status, message_id, photo_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.ListingID),
		rec.Status.String(),
		rec.MessageID,
		rec.PhotoCount,
		rec.Error,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", rec.ID, err)
	}
	return nil
}

// RecentPosts returns up to limit records, newest first.
func (r *Repository) RecentPosts(ctx context.Context, limit int) ([]domain.PostRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, listing_id, status, message_id, photo_count, error, created_at
		FROM channel_posts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var posts []domain.PostRecord
	for rows.Next() {
		var (
			p         domain.PostRecord
			listingID string
			status    string
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &listingID, &status, &p.MessageID, &p.PhotoCount, &p.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.ListingID = domain.ListingID(listingID)
		p.Status = parseStatus(status)
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func parseStatus(s string) domain.DeliveryStatus {
	switch s {
	case domain.DeliveryDelivered.String():
		return domain.DeliveryDelivered
	case domain.DeliverySkipped.String():
		return domain.DeliverySkipped
	default:
		return domain.DeliveryFailed
	}
}

var _ domain.PostLog = (*Repository)(nil)
