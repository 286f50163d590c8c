package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrNoSession is returned when a session record does not exist.
var ErrNoSession = errors.New("session not found")

// ErrDuplicateSession is returned when creating a session whose id is taken.
var ErrDuplicateSession = errors.New("session already exists")

const sessionColumns = `id, label, status, remote_identity, phone_number,
	pairing_code, pairing_code_expires_at, qr_code, qr_code_updated_at,
	last_connected_at, error_message, created_at, updated_at`

// CreateSession inserts a new session record in idle status.
func (db *DB) CreateSession(id, label string) (*Session, error) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sessions (id, label, status, created_at, updated_at)
		VALUES (?, ?, 'idle', ?, ?)`,
		id, label, now, now)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return db.GetSession(id)
}

// GetSession returns the session record for id, or ErrNoSession.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	return s, err
}

// ListSessions returns all session records, most recently updated first.
func (db *DB) ListSessions() ([]Session, error) {
	rows, err := db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSession applies a partial update to a session record. Updating a
// deleted session affects zero rows and is a silent no-op: lifecycle events
// racing with deletion must never resurrect a record.
func (db *DB) UpdateSession(id string, p SessionPatch) error {
	sets, args := p.assignments()
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := db.Exec(query, args...); err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// DeleteSession removes a session record entirely.
func (db *DB) DeleteSession(id string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (p SessionPatch) assignments() ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}

	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.RemoteIdentity != nil {
		add("remote_identity", *p.RemoteIdentity)
	}
	if p.PhoneNumber != nil {
		add("phone_number", *p.PhoneNumber)
	}
	if p.PairingCode != nil {
		add("pairing_code", *p.PairingCode)
	}
	if p.PairingCodeExpiresAt != nil {
		add("pairing_code_expires_at", *p.PairingCodeExpiresAt)
	}
	if p.QRCode != nil {
		add("qr_code", *p.QRCode)
	}
	if p.QRCodeUpdatedAt != nil {
		add("qr_code_updated_at", *p.QRCodeUpdatedAt)
	}
	if p.LastConnectedAt != nil {
		add("last_connected_at", *p.LastConnectedAt)
	}
	if p.ErrorMessage != nil {
		add("error_message", *p.ErrorMessage)
	}
	return sets, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var s Session
	err := r.Scan(&s.ID, &s.Label, &s.Status, &s.RemoteIdentity, &s.PhoneNumber,
		&s.PairingCode, &s.PairingCodeExpiresAt, &s.QRCode, &s.QRCodeUpdatedAt,
		&s.LastConnectedAt, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
