package store

import "time"

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// UpsertMessage records a message idempotently on (session_id, wa_msg_id).
// Redelivery of an already-stored message has no observable effect.
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (session_id, wa_msg_id, direction, status, from_addr, to_addr,
			body, message_type, raw_payload, error_message, message_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, wa_msg_id) DO NOTHING`,
		m.SessionID, m.WAMsgID, m.Direction, m.Status, m.From, m.To,
		m.Body, m.MessageType, m.RawPayload, m.ErrorMessage, m.MessageTimestamp,
		time.Now().UnixMilli())
	return err
}

// InsertMessage records a message unconditionally; a duplicate key fails.
// Used for send-attempt audit rows, which carry a fresh id per attempt.
func (db *DB) InsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (session_id, wa_msg_id, direction, status, from_addr, to_addr,
			body, message_type, raw_payload, error_message, message_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.WAMsgID, m.Direction, m.Status, m.From, m.To,
		m.Body, m.MessageType, m.RawPayload, m.ErrorMessage, m.MessageTimestamp,
		time.Now().UnixMilli())
	return err
}

// ListMessagesOptions filters a message history query.
type ListMessagesOptions struct {
	// Direction restricts to "incoming" or "outgoing" when non-empty.
	Direction string
	// Before restricts to messages with message_timestamp strictly earlier
	// (unix milliseconds) when positive.
	Before int64
	// Limit caps the result size; zero means the default of 50, values
	// above 200 are clamped.
	Limit int
}

// ListMessages returns a session's message history, newest first.
func (db *DB) ListMessages(sessionID string, opts ListMessagesOptions) ([]Message, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	query := `SELECT id, session_id, wa_msg_id, direction, status, from_addr, to_addr,
		body, message_type, raw_payload, error_message, message_timestamp, created_at
		FROM messages WHERE session_id = ?`
	args := []any{sessionID}

	if opts.Direction == DirectionIncoming || opts.Direction == DirectionOutgoing {
		query += ` AND direction = ?`
		args = append(args, opts.Direction)
	}
	if opts.Before > 0 {
		query += ` AND message_timestamp < ?`
		args = append(args, opts.Before)
	}
	query += ` ORDER BY message_timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.WAMsgID, &m.Direction, &m.Status,
			&m.From, &m.To, &m.Body, &m.MessageType, &m.RawPayload, &m.ErrorMessage,
			&m.MessageTimestamp, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of stored messages for a session.
func (db *DB) CountMessages(sessionID string) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// DeleteMessages removes all messages for a session and reports how many
// rows were deleted.
func (db *DB) DeleteMessages(sessionID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
