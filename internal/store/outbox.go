package store

import "time"

// QueueOutbox records a message about to be sent.
func (db *DB) QueueOutbox(clientMsgID, counterpart, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, counterpart, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, counterpart, body, now, now)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message ID.
func (db *DB) MarkOutboxSent(clientMsgID, serverMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE client_msg_id = ?`, serverMsgID, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// MarkOutboxRetried marks a failed entry as superseded by a new attempt.
func (db *DB) MarkOutboxRetried(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'retried', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// FailStaleOutbox marks entries left queued by a previous process as failed.
// Their send outcome is unknown and can no longer be observed.
func (db *DB) FailStaleOutbox(errMsg string) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE status = 'queued'`, errMsg, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	return db.queryOutbox(`
		SELECT client_msg_id, counterpart, body, status, error_message, server_msg_id, created_at, updated_at
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
}

// ListOutbox returns the most recent outbox entries, newest first.
func (db *DB) ListOutbox(limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryOutbox(`
		SELECT client_msg_id, counterpart, body, status, error_message, server_msg_id, created_at, updated_at
		FROM outbox ORDER BY created_at DESC, client_msg_id ASC LIMIT ?`, limit)
}

func (db *DB) queryOutbox(query string, args ...any) ([]OutboxEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ClientMsgID, &e.Counterpart, &e.Body, &e.Status, &e.ErrorMessage, &e.ServerMsgID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
