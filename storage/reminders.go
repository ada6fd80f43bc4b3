package storage

import (
	"fmt"
	"time"
)

// Reminder is a user-armed future message promising to notify the user
// one stop before they must alight.
type Reminder struct {
	ID        int64
	UserID    int64
	RouteKey  string
	StationID string
	RemindAt  time.Time
	Lang      string
	Active    bool
	CreatedAt time.Time
}

// SaveReminder persists an active reminder and returns its id. The user
// row is upserted so the reminder always has an owner.
func (s *Store) SaveReminder(userID int64, routeKey, stationID string, remindAt time.Time, lang string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO users (user_id, last_seen, language)
VALUES (?, CURRENT_TIMESTAMP, ?)
ON CONFLICT (user_id) DO UPDATE SET
    last_seen = CURRENT_TIMESTAMP,
    language = excluded.language`,
		userID, lang)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("upserting user: %w", err)
	}

	res, err := tx.Exec(`
INSERT INTO reminders (user_id, route_key, station_id, remind_at, lang, active, created_at)
VALUES (?, ?, ?, ?, ?, 1, ?)`,
		userID, routeKey, stationID, remindAt.UTC(), lang, time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("reading reminder id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing reminder: %w", err)
	}
	return id, nil
}

// ActiveReminders returns a user's active reminders ordered by remind_at.
func (s *Store) ActiveReminders(userID int64) ([]Reminder, error) {
	return s.queryReminders(`
SELECT id, user_id, route_key, station_id, remind_at, lang, active, created_at
FROM reminders
WHERE user_id = ? AND active = 1
ORDER BY remind_at`, userID)
}

// AllActiveReminders returns every active reminder ordered by remind_at.
func (s *Store) AllActiveReminders() ([]Reminder, error) {
	return s.queryReminders(`
SELECT id, user_id, route_key, station_id, remind_at, lang, active, created_at
FROM reminders
WHERE active = 1
ORDER BY remind_at`)
}

// DeactivateReminder marks one reminder inactive.
func (s *Store) DeactivateReminder(id int64) error {
	if _, err := s.db.Exec(`UPDATE reminders SET active = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deactivating reminder: %w", err)
	}
	return nil
}

// ClearUserReminders deactivates all of a user's active reminders.
func (s *Store) ClearUserReminders(userID int64) error {
	if _, err := s.db.Exec(`UPDATE reminders SET active = 0 WHERE user_id = ? AND active = 1`, userID); err != nil {
		return fmt.Errorf("clearing user reminders: %w", err)
	}
	return nil
}

// DeactivateOverdueReminders marks inactive every active reminder whose
// remind_at is at or before now. Covers the crash window where a timer
// never fired.
func (s *Store) DeactivateOverdueReminders(now time.Time) (int, error) {
	res, err := s.db.Exec(`UPDATE reminders SET active = 0 WHERE active = 1 AND remind_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivating overdue reminders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting overdue reminders: %w", err)
	}
	return int(n), nil
}

func (s *Store) queryReminders(query string, args ...interface{}) ([]Reminder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	reminders := []Reminder{}
	for rows.Next() {
		var r Reminder
		var active int
		if err := rows.Scan(&r.ID, &r.UserID, &r.RouteKey, &r.StationID, &r.RemindAt, &r.Lang, &active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		r.Active = active == 1
		reminders = append(reminders, r)
	}
	return reminders, nil
}
