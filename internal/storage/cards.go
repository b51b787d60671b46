package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CardRecord is a relayed phrase card.
type CardRecord struct {
	ID              uuid.UUID
	Fingerprint     string
	English         string
	Spanish         string
	SourceChatID    int64
	SourceMessageID int
	OCREngine       string
	Delivered       int
	CreatedAt       time.Time
}

// RecordCard stores a relayed card. A zero ID is replaced by a fresh UUID.
func (db *DB) RecordCard(ctx context.Context, rec CardRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO relayed_cards (id, fingerprint, english, spanish, source_chat_id, source_message_id, ocr_engine, delivered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Fingerprint, SanitizeUTF8(rec.English), SanitizeUTF8(rec.Spanish),
		rec.SourceChatID, rec.SourceMessageID, rec.OCREngine, rec.Delivered)
	if err != nil {
		return fmt.Errorf("insert relayed card: %w", err)
	}

	return nil
}

// CardSeenSince reports whether a card with the fingerprint was relayed after since.
func (db *DB) CardSeenSince(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	var seen bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM relayed_cards
			WHERE fingerprint = $1 AND created_at >= $2
		)
	`, fingerprint, since).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("query card fingerprint: %w", err)
	}

	return seen, nil
}

// CountCardsSince returns how many cards were relayed after since.
func (db *DB) CountCardsSince(ctx context.Context, since time.Time) (int, error) {
	var count int

	if err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM relayed_cards WHERE created_at >= $1
	`, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count relayed cards: %w", err)
	}

	return count, nil
}

// RecentCards returns the latest relayed cards, newest first.
func (db *DB) RecentCards(ctx context.Context, limit int) ([]CardRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, fingerprint, english, spanish, source_chat_id, source_message_id, ocr_engine, delivered, created_at
		FROM relayed_cards
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent cards: %w", err)
	}
	defer rows.Close()

	cards := make([]CardRecord, 0, limit)

	for rows.Next() {
		var rec CardRecord
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.English, &rec.Spanish,
			&rec.SourceChatID, &rec.SourceMessageID, &rec.OCREngine, &rec.Delivered, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relayed card row: %w", err)
		}

		cards = append(cards, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relayed card rows: %w", err)
	}

	return cards, nil
}

// PruneCardsBefore deletes journal rows older than before.
func (db *DB) PruneCardsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM relayed_cards WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune relayed cards: %w", err)
	}

	return tag.RowsAffected(), nil
}
