package storage

import "fmt"

// The analytics tables mirror the user tables but key on an anonymized
// hash, so usage counting can stay on while per-user storage is off.

func (s *Store) ensureAnalyticsSchema() error {
	for name, query := range map[string]string{
		"analytics_users": `
CREATE TABLE IF NOT EXISTS analytics_users (
    user_hash TEXT PRIMARY KEY,
    first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    interaction_count INTEGER DEFAULT 1
);`,
		"analytics_interactions": `
CREATE TABLE IF NOT EXISTS analytics_interactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_hash TEXT NOT NULL,
    feature TEXT NOT NULL,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_analytics_interactions_user
    ON analytics_interactions (user_hash);`,
	} {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("creating %s table: %w", name, err)
		}
	}
	return nil
}

// TrackAnonymousInteraction records one feature use under an anonymized
// user hash. Purely additive; nothing user-facing depends on it.
func (s *Store) TrackAnonymousInteraction(userHash, feature string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO analytics_users (user_hash, last_seen)
VALUES (?, CURRENT_TIMESTAMP)
ON CONFLICT (user_hash) DO UPDATE SET
    last_seen = CURRENT_TIMESTAMP,
    interaction_count = interaction_count + 1`,
		userHash)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("upserting analytics user: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO analytics_interactions (user_hash, feature) VALUES (?, ?)`, userHash, feature); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting analytics interaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing analytics interaction: %w", err)
	}
	return nil
}
