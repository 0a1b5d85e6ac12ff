// Package runstore persists a history of external tool invocations so
// failed genomes can be inspected after a batch finishes.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pgmlab/genomeqc/internal/domain"
)

// Invocation is one recorded external tool call
type Invocation struct {
	ID         string
	GenomeID   string
	Tool       domain.Tool
	Args       []string
	Status     domain.GenomeStatus
	ExitCode   int
	OutputPath string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store provides SQLite-backed invocation persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts an invocation, assigning an ID when absent
func (s *Store) Record(inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	argsJSON, err := json.Marshal(inv.Args)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO invocations (id, genome_id, tool, args, status, exit_code, output_path, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID,
		inv.GenomeID,
		string(inv.Tool),
		string(argsJSON),
		string(inv.Status),
		inv.ExitCode,
		inv.OutputPath,
		inv.Error,
		inv.StartedAt,
		inv.FinishedAt,
	)
	return err
}

// ListOptions specifies filters for listing invocations
type ListOptions struct {
	GenomeID string
	Status   domain.GenomeStatus
}

// List returns invocations matching the given options, oldest first
func (s *Store) List(opts ListOptions) ([]*Invocation, error) {
	query := `SELECT id, genome_id, tool, args, status, exit_code, output_path, error, started_at, finished_at FROM invocations WHERE 1=1`
	var args []interface{}

	if opts.GenomeID != "" {
		query += " AND genome_id = ?"
		args = append(args, opts.GenomeID)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY started_at, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}

	return invs, rows.Err()
}

// CountByStatus returns how many recorded invocations hold each status
func (s *Store) CountByStatus() (map[domain.GenomeStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM invocations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.GenomeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.GenomeStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanInvocation(rows *sql.Rows) (*Invocation, error) {
	var inv Invocation
	var tool, status, argsJSON string
	var outputPath, errText sql.NullString

	err := rows.Scan(&inv.ID, &inv.GenomeID, &tool, &argsJSON, &status, &inv.ExitCode, &outputPath, &errText, &inv.StartedAt, &inv.FinishedAt)
	if err != nil {
		return nil, err
	}

	inv.Tool = domain.Tool(tool)
	inv.Status = domain.GenomeStatus(status)
	if outputPath.Valid {
		inv.OutputPath = outputPath.String
	}
	if errText.Valid {
		inv.Error = errText.String
	}

	if argsJSON != "" && argsJSON != "null" {
		if err := json.Unmarshal([]byte(argsJSON), &inv.Args); err != nil {
			return nil, err
		}
	}

	return &inv, nil
}
