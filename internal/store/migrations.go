package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per process run
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			port TEXT NOT NULL,
			link_available INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,

		// Every command accepted by the debouncer, whatever the link outcome
		`CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			run_id TEXT REFERENCES runs(id) ON DELETE CASCADE,
			code TEXT NOT NULL CHECK(code IN ('G1', 'G2', 'G3', 'G4', 'G5', 'G6', 'G7')),
			gesture TEXT NOT NULL,
			outcome TEXT NOT NULL CHECK(outcome IN ('sent', 'link_unavailable', 'failed')),
			error TEXT NOT NULL DEFAULT '',
			sent_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_dispatches_sent_at ON dispatches(sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_run_id ON dispatches(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
