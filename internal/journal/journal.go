package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medbook/internal/events"
	"medbook/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// Journal keeps a local history of booking attempts in SQLite.
type Journal struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// ListFilter narrows List results. Zero values mean no restriction.
type ListFilter struct {
	Outcome models.Outcome
	Limit   int
}

// Open opens the journal at path, creating the file and tables if needed.
func Open(path string, logger *zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", path).Msg("journal opened")
	return &Journal{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS booking_attempts (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT UNIQUE NOT NULL,
            patient_name TEXT NOT NULL,
            doctor_name TEXT NOT NULL,
            date TEXT NOT NULL,
            time TEXT NOT NULL,
            outcome TEXT NOT NULL,
            status_code INTEGER NOT NULL DEFAULT 0,
            appointment_id TEXT NOT NULL DEFAULT '',
            message TEXT NOT NULL DEFAULT '',
            error TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_booking_attempts_outcome ON booking_attempts(outcome)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// PingContext checks the database connection.
func (j *Journal) PingContext(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Record stores one attempt. Recording the same attempt id twice is a no-op.
func (j *Journal) Record(ctx context.Context, a models.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO booking_attempts
            (id, patient_name, doctor_name, date, time, outcome, status_code, appointment_id, message, error, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO NOTHING`,
		a.ID, a.Request.PatientName, a.Request.DoctorName, a.Request.Date, a.Request.Time,
		string(a.Outcome), a.StatusCode, a.AppointmentID, a.Message, a.Error, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record attempt %s: %w", a.ID, err)
	}
	return nil
}

// HandleEvent records the attempt carried by a bus event.
func (j *Journal) HandleEvent(e events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return j.Record(ctx, e.Attempt)
}

// List returns attempts newest first.
func (j *Journal) List(ctx context.Context, f ListFilter) ([]models.Attempt, error) {
	query := `SELECT id, patient_name, doctor_name, date, time, outcome, status_code,
            appointment_id, message, error, created_at
        FROM booking_attempts`
	var args []any
	if f.Outcome != "" {
		query += " WHERE outcome = ?"
		args = append(args, string(f.Outcome))
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var outcome string
		if err := rows.Scan(
			&a.ID, &a.Request.PatientName, &a.Request.DoctorName, &a.Request.Date, &a.Request.Time,
			&outcome, &a.StatusCode, &a.AppointmentID, &a.Message, &a.Error, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = models.Outcome(outcome)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Counts returns the number of recorded attempts per outcome.
func (j *Journal) Counts(ctx context.Context) (map[models.Outcome]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM booking_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
