package history

import "database/sql"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS metric_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		metric TEXT NOT NULL,
		value REAL,
		ok INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'unknown'
	);
	CREATE INDEX IF NOT EXISTS idx_samples_metric_ts ON metric_samples(metric, timestamp);
	CREATE INDEX IF NOT EXISTS idx_samples_ts ON metric_samples(timestamp);`,

	`CREATE TABLE IF NOT EXISTS status_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		metric TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		value REAL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_metric_ts ON status_transitions(metric, timestamp);
	CREATE INDEX IF NOT EXISTS idx_transitions_ts ON status_transitions(timestamp);`,
}

func runMigrations(db *sql.DB) error {
	// Create migration tracking table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
