package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// Dispatch is one accepted command as stored in the database.
type Dispatch struct {
	ID      string    `json:"id"`
	RunID   string    `json:"run_id,omitempty"`
	Code    string    `json:"code"`
	Gesture string    `json:"gesture"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// DispatchRepository provides access to the dispatch history.
type DispatchRepository struct {
	db *sql.DB
}

// Dispatches returns the dispatch repository for this store.
func (s *Store) Dispatches() *DispatchRepository {
	return &DispatchRepository{db: s.db}
}

// Create inserts a dispatch, assigning a new ID when empty.
func (r *DispatchRepository) Create(d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.SentAt.IsZero() {
		d.SentAt = time.Now()
	}

	var runID any
	if d.RunID != "" {
		runID = d.RunID
	}

	_, err := r.db.Exec(
		`INSERT INTO dispatches (id, run_id, code, gesture, outcome, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, runID, d.Code, d.Gesture, d.Outcome, d.Error, d.SentAt.UTC(),
	)
	return err
}

// GetByID retrieves a dispatch by its ID.
func (r *DispatchRepository) GetByID(id string) (*Dispatch, error) {
	row := r.db.QueryRow(
		`SELECT id, run_id, code, gesture, outcome, error, sent_at
		 FROM dispatches WHERE id = ?`,
		id,
	)

	d, err := scanDispatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Recent returns up to limit dispatches, newest first.
func (r *DispatchRepository) Recent(limit int) ([]*Dispatch, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := r.db.Query(
		`SELECT id, run_id, code, gesture, outcome, error, sent_at
		 FROM dispatches ORDER BY sent_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []*Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dispatches, nil
}

// CountByCode returns the number of dispatches per command code.
func (r *DispatchRepository) CountByCode() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT code, COUNT(*) FROM dispatches GROUP BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// DeleteBefore removes dispatches sent before t and returns how many went.
func (r *DispatchRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM dispatches WHERE sent_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(s scanner) (*Dispatch, error) {
	d := &Dispatch{}
	var runID sql.NullString

	if err := s.Scan(&d.ID, &runID, &d.Code, &d.Gesture, &d.Outcome, &d.Error, &d.SentAt); err != nil {
		return nil, err
	}

	d.RunID = runID.String
	return d, nil
}
