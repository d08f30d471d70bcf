package store

// SearchMessages performs a full-text search on archived message bodies.
func (db *DB) SearchMessages(query string, channelID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.channel_id, m.msg_id, m.role, m.kind, m.body,
		       m.timestamp_label, m.enriched, m.observed_at,
		       snippet(messages_fts, '<<', '>>', '...', 0, 16)
		FROM messages_fts f
		JOIN messages m ON m.id = f.docid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if channelID != "" {
		q += " AND m.channel_id = ?"
		args = append(args, channelID)
	}
	q += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.ID, &r.Message.ChannelID, &r.Message.MsgID,
			&r.Message.Role, &r.Message.Kind, &r.Message.Body,
			&r.Message.TimestampLabel, &r.Message.Enriched, &r.Message.ObservedAt,
			&r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
