package store

import "fmt"

// ReplaceRoomLog overwrites the cached log of one room with msgs, in order.
func (db *DB) ReplaceRoomLog(counterpart string, msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE counterpart = ?`, counterpart); err != nil {
		return fmt.Errorf("clear room log: %w", err)
	}
	for i, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, counterpart, server_id, author, body, sent_at, state, local, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(counterpart, id) DO UPDATE SET
				server_id = excluded.server_id,
				body = excluded.body,
				state = excluded.state,
				local = excluded.local,
				position = excluded.position`,
			m.ID, counterpart, m.ServerID, m.Author, m.Body, m.SentAt, m.State, m.Local, i); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListRoomLog returns the cached log of one room in display order.
func (db *DB) ListRoomLog(counterpart string) ([]Message, error) {
	return db.queryMessages(`
		SELECT id, counterpart, server_id, author, body, sent_at, state, local, position
		FROM messages WHERE counterpart = ?
		ORDER BY position ASC`, counterpart)
}

// LoadRoomLogs returns every cached room log keyed by counterpart.
func (db *DB) LoadRoomLogs() (map[string][]Message, error) {
	msgs, err := db.queryMessages(`
		SELECT id, counterpart, server_id, author, body, sent_at, state, local, position
		FROM messages
		ORDER BY counterpart ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	logs := make(map[string][]Message)
	for _, m := range msgs {
		logs[m.Counterpart] = append(logs[m.Counterpart], m)
	}
	return logs, nil
}

func (db *DB) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Counterpart, &m.ServerID, &m.Author, &m.Body, &m.SentAt, &m.State, &m.Local, &m.Position); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
