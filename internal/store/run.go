package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run records one process run of the pipeline.
type Run struct {
	ID            string
	Strategy      string
	Port          string
	LinkAvailable bool
	Frames        uint64
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// RunRepository provides access to runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Start inserts a run. ID and StartedAt are assigned when empty.
func (r *RunRepository) Start(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, strategy, port, link_available, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Port, run.LinkAvailable, run.StartedAt.UTC(),
	)
	return err
}

// Finish stamps the end of a run with its frame count.
func (r *RunRepository) Finish(id string, frames uint64, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE runs SET frames = ?, finished_at = ? WHERE id = ?`,
		int64(frames), at.UTC(), id,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run := &Run{}
	var available int
	var frames int64
	var finished sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, strategy, port, link_available, frames, started_at, finished_at
		 FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Strategy, &run.Port, &available, &frames, &run.StartedAt, &finished)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	run.LinkAvailable = available != 0
	run.Frames = uint64(frames)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
