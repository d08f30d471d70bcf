package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertChat inserts or updates an inbox row.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	seen := c.LastSeenAt
	if seen == 0 {
		seen = now
	}
	kind := c.Kind
	if kind == "" {
		kind = "unknown"
	}
	_, err := db.Exec(`
		INSERT INTO chats (channel_id, title, phone, kind, preview, unread_count, list_index, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE chats.phone END,
			kind = CASE WHEN excluded.kind != 'unknown' THEN excluded.kind ELSE chats.kind END,
			preview = excluded.preview,
			unread_count = excluded.unread_count,
			list_index = excluded.list_index,
			last_seen_at = MAX(chats.last_seen_at, excluded.last_seen_at),
			updated_at = excluded.updated_at`,
		c.ChannelID, c.Title, c.Phone, kind, c.Preview, c.UnreadCount, c.ListIndex, seen, now)
	return err
}

// UpsertChats writes a whole inbox listing in one transaction.
func (db *DB) UpsertChats(chats []Chat) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range chats {
		kind := c.Kind
		if kind == "" {
			kind = "unknown"
		}
		if _, err := tx.Exec(`
			INSERT INTO chats (channel_id, title, phone, kind, preview, unread_count, list_index, last_seen_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET
				title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
				phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE chats.phone END,
				kind = CASE WHEN excluded.kind != 'unknown' THEN excluded.kind ELSE chats.kind END,
				preview = excluded.preview,
				unread_count = excluded.unread_count,
				list_index = excluded.list_index,
				last_seen_at = excluded.last_seen_at,
				updated_at = excluded.updated_at`,
			c.ChannelID, c.Title, c.Phone, kind, c.Preview, c.UnreadCount, c.ListIndex, now, now); err != nil {
			return fmt.Errorf("upsert chat %q: %w", c.ChannelID, err)
		}
	}
	return tx.Commit()
}

// ListChats returns chats ordered by inbox rank of the latest observation.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT channel_id, title, phone, kind, preview, unread_count, list_index, last_seen_at
		FROM chats
		ORDER BY last_seen_at DESC, list_index ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ChannelID, &c.Title, &c.Phone, &c.Kind, &c.Preview, &c.UnreadCount, &c.ListIndex, &c.LastSeenAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by channel id, or nil when unknown.
func (db *DB) GetChat(channelID string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT channel_id, title, phone, kind, preview, unread_count, list_index, last_seen_at
		FROM chats WHERE channel_id = ?`, channelID).
		Scan(&c.ChannelID, &c.Title, &c.Phone, &c.Kind, &c.Preview, &c.UnreadCount, &c.ListIndex, &c.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// MessageCount returns the total number of archived messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
