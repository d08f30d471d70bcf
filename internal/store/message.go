package store

import (
	"fmt"
	"time"
)

const upsertMessageSQL = `
	INSERT INTO messages (channel_id, msg_id, role, kind, body, timestamp_label, enriched, observed_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(channel_id, msg_id) DO UPDATE SET
		kind = excluded.kind,
		body = excluded.body,
		timestamp_label = excluded.timestamp_label,
		enriched = excluded.enriched`

// UpsertMessage inserts or updates a message (idempotent on channel_id + msg_id).
// The first observation time is kept.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	observed := m.ObservedAt
	if observed == 0 {
		observed = now
	}
	_, err := db.Exec(upsertMessageSQL,
		m.ChannelID, m.MsgID, m.Role, m.Kind, m.Body, m.TimestampLabel, m.Enriched, observed, now)
	return err
}

// UpsertMessages archives a batch of observations in one transaction and
// returns how many rows were new.
func (db *DB) UpsertMessages(msgs []Message) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	inserted := 0
	for _, m := range msgs {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE channel_id = ? AND msg_id = ?`, m.ChannelID, m.MsgID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("lookup message %q: %w", m.MsgID, err)
		}
		observed := m.ObservedAt
		if observed == 0 {
			observed = now
		}
		if _, err := tx.Exec(upsertMessageSQL,
			m.ChannelID, m.MsgID, m.Role, m.Kind, m.Body, m.TimestampLabel, m.Enriched, observed, now); err != nil {
			return 0, fmt.Errorf("upsert message %q: %w", m.MsgID, err)
		}
		if exists == 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListMessages returns archived messages for a channel, newest first, using
// keyset pagination on the row id. beforeID <= 0 starts from the newest.
func (db *DB) ListMessages(channelID string, beforeID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, channel_id, msg_id, role, kind, body, timestamp_label, enriched, observed_at
		FROM messages
		WHERE channel_id = ?`
	args := []any{channelID}
	if beforeID > 0 {
		q += " AND id < ?"
		args = append(args, beforeID)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.MsgID, &m.Role, &m.Kind, &m.Body, &m.TimestampLabel, &m.Enriched, &m.ObservedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
