package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SessionKey identifies one conversation context. Destiny distinguishes
// parallel contexts when the host supports them.
type SessionKey struct {
	ChatID  int64
	UserID  int64
	Destiny string
}

// DefaultDestiny is used when the host has a single conversation context
// per chat.
const DefaultDestiny = "default"

// GetState returns the session's state name, or "" when unset.
func (s *Store) GetState(key SessionKey) (string, error) {
	var state sql.NullString
	err := s.db.QueryRow(`
SELECT state FROM fsm_state
WHERE chat_id = ? AND user_id = ? AND destiny = ?`,
		key.ChatID, key.UserID, key.Destiny).Scan(&state)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying session state: %w", err)
	}
	return state.String, nil
}

// SetState writes the state name, preserving existing data.
func (s *Store) SetState(key SessionKey, state string) error {
	var stateVal sql.NullString
	if state != "" {
		stateVal = sql.NullString{String: state, Valid: true}
	}
	_, err := s.db.Exec(`
INSERT INTO fsm_state (chat_id, user_id, destiny, state, data, updated_at)
VALUES (?, ?, ?, ?, COALESCE((SELECT data FROM fsm_state
    WHERE chat_id = ? AND user_id = ? AND destiny = ?), '{}'), ?)
ON CONFLICT (chat_id, user_id, destiny)
DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		key.ChatID, key.UserID, key.Destiny, stateVal,
		key.ChatID, key.UserID, key.Destiny,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// GetData returns the session's data map. A missing or unparsable row
// yields an empty map.
func (s *Store) GetData(key SessionKey) (map[string]interface{}, error) {
	var data sql.NullString
	err := s.db.QueryRow(`
SELECT data FROM fsm_state
WHERE chat_id = ? AND user_id = ? AND destiny = ?`,
		key.ChatID, key.UserID, key.Destiny).Scan(&data)
	if err == sql.ErrNoRows {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session data: %w", err)
	}
	if !data.Valid || data.String == "" {
		return map[string]interface{}{}, nil
	}

	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(data.String), &out); err != nil {
		return map[string]interface{}{}, nil
	}
	return out, nil
}

// SetData replaces the session's data map, preserving existing state.
func (s *Store) SetData(key SessionKey, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO fsm_state (chat_id, user_id, destiny, state, data, updated_at)
VALUES (?, ?, ?, (SELECT state FROM fsm_state
    WHERE chat_id = ? AND user_id = ? AND destiny = ?), ?, ?)
ON CONFLICT (chat_id, user_id, destiny)
DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key.ChatID, key.UserID, key.Destiny,
		key.ChatID, key.UserID, key.Destiny,
		string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing session data: %w", err)
	}
	return nil
}

// UpdateData merges patch into the stored data in one read-merge-write
// step and returns the result. The chat platform delivers messages per
// chat in order, so writes per key do not race.
func (s *Store) UpdateData(key SessionKey, patch map[string]interface{}) (map[string]interface{}, error) {
	data, err := s.GetData(key)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		data[k] = v
	}
	if err := s.SetData(key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ClearSession removes the session row.
func (s *Store) ClearSession(key SessionKey) error {
	_, err := s.db.Exec(`
DELETE FROM fsm_state
WHERE chat_id = ? AND user_id = ? AND destiny = ?`,
		key.ChatID, key.UserID, key.Destiny)
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CleanupStaleSessions removes sessions untouched for longer than maxAge
// and returns the number removed.
func (s *Store) CleanupStaleSessions(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM fsm_state WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned sessions: %w", err)
	}
	return int(n), nil
}
