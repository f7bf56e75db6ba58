package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// Postgres stores documents in cardprofile.documents, one jsonb value per
// key. Patch semantics map onto the jsonb || operator, so merges happen
// server-side.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema provisions the schema and documents table. Call once at
// startup; writes also provision lazily when the table is missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `create schema if not exists cardprofile`); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
        create table if not exists cardprofile.documents(
            key text primary key,
            doc jsonb not null
        )`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`select doc from cardprofile.documents where key=$1`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		// an unprovisioned table holds no documents
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Postgres) Set(ctx context.Context, key string, doc []byte) error {
	const upsert = `
        insert into cardprofile.documents(key, doc) values ($1, $2)
        on conflict (key) do update set doc = excluded.doc`
	_, err := s.db.ExecContext(ctx, upsert, key, doc)
	if isUndefinedTable(err) {
		if err = s.EnsureSchema(ctx); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, upsert, key, doc)
	}
	return err
}

func (s *Postgres) Merge(ctx context.Context, key string, fields []byte) error {
	res, err := s.db.ExecContext(ctx, `
        update cardprofile.documents set doc = doc || $2::jsonb where key=$1
    `, key, fields)
	if isUndefinedTable(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from cardprofile.documents where key=$1`, key)
	if isUndefinedTable(err) {
		return nil
	}
	return err
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUndefinedTable matches SQLSTATE 42P01 from either driver error type.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return true
	}
	return false
}
