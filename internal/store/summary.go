package store

import (
	"fmt"
	"time"
)

// ReplaceSummaries swaps the cached conversation list in one transaction.
func (db *DB) ReplaceSummaries(sums []Summary) error {
	now := time.Now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM summaries`); err != nil {
		return fmt.Errorf("clear summaries: %w", err)
	}
	for _, s := range sums {
		if _, err := tx.Exec(`
			INSERT INTO summaries (counterpart, last_message_preview, last_message_at, unread_count, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(counterpart) DO UPDATE SET
				last_message_preview = excluded.last_message_preview,
				last_message_at = excluded.last_message_at,
				unread_count = excluded.unread_count,
				updated_at = excluded.updated_at`,
			s.Counterpart, s.LastMessagePreview, s.LastMessageAt, s.UnreadCount, now); err != nil {
			return fmt.Errorf("insert summary %q: %w", s.Counterpart, err)
		}
	}
	return tx.Commit()
}

// ListSummaries returns cached summaries, most recent first.
func (db *DB) ListSummaries() ([]Summary, error) {
	rows, err := db.Query(`
		SELECT counterpart, last_message_preview, last_message_at, unread_count
		FROM summaries
		ORDER BY last_message_at DESC, counterpart ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sums []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Counterpart, &s.LastMessagePreview, &s.LastMessageAt, &s.UnreadCount); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}
