package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const filesSchema = `
CREATE TABLE IF NOT EXISTS files (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    mime_type   TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location_id TEXT NOT NULL DEFAULT '',
    parents     TEXT[] NOT NULL DEFAULT '{}',
    content     BYTEA,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS files_parents_idx ON files USING GIN (parents);
`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, filesSchema); err != nil {
		return fmt.Errorf("create files schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(ctx, `SELECT content FROM files WHERE id = $1`, id).Scan(&body)
	if err != nil {
		return nil, pgErr("get "+id, err)
	}
	return body, nil
}

func (s *PostgresStore) GetMeta(ctx context.Context, id string) (models.FileMeta, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, mime_type, description, location_id, parents, created_at
        FROM files
        WHERE id = $1
    `, id)

	m, err := scanMeta(row)
	if err != nil {
		return models.FileMeta{}, pgErr("meta "+id, err)
	}
	return m, nil
}

func (s *PostgresStore) Create(ctx context.Context, nf NewFile) (models.FileMeta, error) {
	parents := []string{}
	if nf.Parent != "" {
		parents = append(parents, nf.Parent)
	}

	row := s.db.QueryRow(ctx, `
        INSERT INTO files (id, name, mime_type, description, location_id, parents, content)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, name, mime_type, description, location_id, parents, created_at
    `, uuid.New().String(), nf.Name, nf.MimeType, nf.Description, nf.LocationID, parents, nf.Body)

	m, err := scanMeta(row)
	if err != nil {
		return models.FileMeta{}, pgErr("create "+nf.Name, err)
	}
	return m, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, body []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE files SET content = $2, updated_at = now() WHERE id = $1`, id, body)
	if err != nil {
		return pgErr("update "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Copy(ctx context.Context, id, name string) (models.FileMeta, error) {
	row := s.db.QueryRow(ctx, `
        INSERT INTO files (id, name, mime_type, description, location_id, parents, content)
        SELECT $2, $3, mime_type, description, location_id, parents, content
        FROM files
        WHERE id = $1
        RETURNING id, name, mime_type, description, location_id, parents, created_at
    `, id, uuid.New().String(), name)

	m, err := scanMeta(row)
	if err != nil {
		return models.FileMeta{}, pgErr("copy "+id, err)
	}
	return m, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return pgErr("delete "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListByFolder(ctx context.Context, folderID, nameFilter string) ([]models.FileMeta, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, name, mime_type, description, location_id, parents, created_at
        FROM files
        WHERE $1 = ANY(parents)
          AND mime_type <> $2
          AND ($3 = '' OR strpos(name, $3) > 0)
        ORDER BY created_at, name
    `, folderID, models.MimeFolder, nameFilter)
	if err != nil {
		return nil, pgErr("list "+folderID, err)
	}
	defer rows.Close()

	out := []models.FileMeta{}
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, pgErr("list "+folderID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("list "+folderID, err)
	}
	return out, nil
}

func (s *PostgresStore) EnsureFolder(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM files WHERE name = $1 AND mime_type = $2 ORDER BY created_at LIMIT 1`,
		name, models.MimeFolder).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", pgErr("folder "+name, err)
	}
	created, err := s.Create(ctx, NewFile{Name: name, MimeType: models.MimeFolder})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func scanMeta(row pgx.Row) (models.FileMeta, error) {
	var m models.FileMeta
	err := row.Scan(&m.ID, &m.Name, &m.MimeType, &m.Description, &m.LocationID, &m.Parents, &m.CreatedAt)
	return m, err
}

func pgErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}
