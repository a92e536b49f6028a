package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Postgres errors
var (
	errOpenFailed   = errors.New("failed to open database")
	errSchemaFailed = errors.New("failed to prepare schema")
	errBadTable     = errors.New("invalid table name")
)

var tableRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore keeps vectors in Postgres with pgvector extension
type PGStore struct {
	db    *sql.DB
	table string
}

// OpenPGStore connects and creates table of given vector dimension
func OpenPGStore(ctx context.Context, dsn string, table string, dim int) (*PGStore, error) {
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", errBadTable, table)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errOpenFailed, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", errOpenFailed, err)
	}

	s := NewPGStore(db, table)
	if err := s.migrate(ctx, dim); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPGStore wraps open database, table name must be trusted
func NewPGStore(db *sql.DB, table string) *PGStore {
	return &PGStore{db: db, table: table}
}

func (s *PGStore) migrate(ctx context.Context, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        BIGINT PRIMARY KEY,
			chat_id   BIGINT NOT NULL DEFAULT 0,
			text      TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, dim),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS chat_id BIGINT NOT NULL DEFAULT 0`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_chat_id_idx ON %s (chat_id)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", errSchemaFailed, err)
		}
	}
	return nil
}

func (s *PGStore) Upsert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, chat_id, text, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, text = EXCLUDED.text, embedding = EXCLUDED.embedding
	`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.ID, e.Scope, e.Text, pgvector.NewVector(e.Vector))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search orders entries of scope by cosine distance; score is 1 - distance
func (s *PGStore) Search(
	ctx context.Context, scope int64, vector []float32, limit int,
) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, text, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE chat_id = $3
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, s.table), pgvector.NewVector(vector), limit, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PGStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

func (s *PGStore) Close() error {
	return s.db.Close()
}
