package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// TrackInteraction upserts the user row and records one feature use.
func (s *Store) TrackInteraction(userID int64, feature string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO users (user_id, last_seen)
VALUES (?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET
    last_seen = CURRENT_TIMESTAMP,
    interaction_count = interaction_count + 1`,
		userID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("upserting user: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO interactions (user_id, feature) VALUES (?, ?)`, userID, feature); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting interaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing interaction: %w", err)
	}
	return nil
}

// UserLanguage returns the user's stored language, or fallback when the
// user is unknown.
func (s *Store) UserLanguage(userID int64, fallback string) (string, error) {
	var lang sql.NullString
	err := s.db.QueryRow(`SELECT language FROM users WHERE user_id = ?`, userID).Scan(&lang)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("querying user language: %w", err)
	}
	if !lang.Valid || lang.String == "" {
		return fallback, nil
	}
	return lang.String, nil
}

// SetUserLanguage stores the user's language preference.
func (s *Store) SetUserLanguage(userID int64, lang string) error {
	_, err := s.db.Exec(`
INSERT INTO users (user_id, language)
VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET language = excluded.language`,
		userID, lang)
	if err != nil {
		return fmt.Errorf("setting user language: %w", err)
	}
	return nil
}

// UsageStats is the aggregate view served to the admin command.
type UsageStats struct {
	TotalUsers     int
	ActiveToday    int
	ActiveThisWeek int
	FeatureUsage   map[string]int
}

// Stats aggregates user counts and per-feature usage.
func (s *Store) Stats(now time.Time) (*UsageStats, error) {
	stats := &UsageStats{FeatureUsage: map[string]int{}}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := s.db.QueryRow(`
SELECT COUNT(DISTINCT user_id) FROM interactions WHERE timestamp >= ?`, today.UTC()).Scan(&stats.ActiveToday)
	if err != nil {
		return nil, fmt.Errorf("counting active today: %w", err)
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	err = s.db.QueryRow(`
SELECT COUNT(DISTINCT user_id) FROM interactions WHERE timestamp >= ?`, weekAgo.UTC()).Scan(&stats.ActiveThisWeek)
	if err != nil {
		return nil, fmt.Errorf("counting active this week: %w", err)
	}

	rows, err := s.db.Query(`
SELECT feature, COUNT(*) FROM interactions GROUP BY feature ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying feature usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var feature string
		var count int
		if err := rows.Scan(&feature, &count); err != nil {
			return nil, fmt.Errorf("scanning feature usage: %w", err)
		}
		stats.FeatureUsage[feature] = count
	}

	return stats, nil
}

// DeleteUserData wipes everything stored for one user: interactions,
// reminders, sessions and the user row itself.
func (s *Store) DeleteUserData(userID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM interactions WHERE user_id = ?`,
		`DELETE FROM reminders WHERE user_id = ?`,
		`DELETE FROM fsm_state WHERE user_id = ?`,
	} {
		if _, err := tx.Exec(q, userID); err != nil {
			tx.Rollback()
			return false, fmt.Errorf("deleting user data: %w", err)
		}
	}

	res, err := tx.Exec(`DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("deleting user row: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing user wipe: %w", err)
	}
	return n > 0, nil
}
